package world

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/zyedidia/generic/mapset"
)

// Kind is the structure occupying a cell.
type Kind uint8

const (
	KindEmpty       Kind = iota // Buildable ground
	KindHouse                   // Homes residents (capacity = level × 4)
	KindRoad                    // Traversable by vehicles
	KindFactory                 // Offers jobs (total = level × 10)
	KindPark                    // Raises land value, lowers pollution
	KindWater                   // Never buildable
	KindPowerPlant              // Seeds the power grid
	KindFireStation             // Raises land value, costs upkeep
)

// MaxLevel is the highest level any structure can reach.
const MaxLevel = 5

const (
	residentsPerLevel = 4
	jobsPerLevel      = 10
)

var kindNames = [...]string{
	KindEmpty:       "empty",
	KindHouse:       "house",
	KindRoad:        "road",
	KindFactory:     "factory",
	KindPark:        "park",
	KindWater:       "water",
	KindPowerPlant:  "power_plant",
	KindFireStation: "fire_station",
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind maps a kind name (case-insensitive, "-" or "_" separated) to a Kind.
func ParseKind(name string) (Kind, bool) {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for k, kn := range kindNames {
		if kn == n {
			return Kind(k), true
		}
	}
	return KindEmpty, false
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown kind %q", b)
	}
	*k = parsed
	return nil
}

// HouseCapacity returns the number of residents a house of the given level holds.
func HouseCapacity(level int) int {
	return level * residentsPerLevel
}

// FactoryJobs returns the job total of a factory of the given level.
func FactoryJobs(level int) int {
	return level * jobsPerLevel
}

// ResidentState is a resident's position in the commute cycle.
type ResidentState uint8

const (
	AtHome ResidentState = iota
	ToWork
	AtWork
	ToHome
)

var residentStateNames = [...]string{"at_home", "to_work", "at_work", "to_home"}

func (s ResidentState) String() string {
	if int(s) < len(residentStateNames) {
		return residentStateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText encodes the state by name.
func (s ResidentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *ResidentState) UnmarshalText(b []byte) error {
	for i, name := range residentStateNames {
		if name == string(b) {
			*s = ResidentState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown resident state %q", b)
}

// Traveling reports whether the resident is on a trip.
func (s ResidentState) Traveling() bool {
	return s == ToWork || s == ToHome
}

// ResidentID identifies a resident by home cell and slot within it.
type ResidentID struct {
	Home Coord
	Slot int
}

func (id ResidentID) String() string {
	return fmt.Sprintf("%d,%d#%d", id.Home.X, id.Home.Y, id.Slot)
}

// MarshalText encodes the ID as "x,y#slot".
func (id ResidentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes an "x,y#slot" ID.
func (id *ResidentID) UnmarshalText(b []byte) error {
	_, err := fmt.Sscanf(string(b), "%d,%d#%d", &id.Home.X, &id.Home.Y, &id.Slot)
	return err
}

// Resident lives in a House cell. Cross references (workplace, vehicle)
// are held by coordinate or ID and resolved through the grid.
type Resident struct {
	ID            ResidentID    `json:"id"`
	State         ResidentState `json:"state"`
	Workplace     *Coord        `json:"workplace,omitempty"`
	DepartureTick *uint64       `json:"departure_tick,omitempty"`
}

// Jobs is a factory's job pool.
type Jobs struct {
	Total    int
	FilledBy mapset.Set[ResidentID]
}

func newJobs(total int) *Jobs {
	return &Jobs{Total: total, FilledBy: mapset.New[ResidentID]()}
}

// Filled returns the number of reserved slots.
func (j *Jobs) Filled() int {
	return j.FilledBy.Size()
}

// Free returns the number of unreserved slots.
func (j *Jobs) Free() int {
	return j.Total - j.FilledBy.Size()
}

// Reserve claims a slot for id. Fails when the pool is full.
func (j *Jobs) Reserve(id ResidentID) bool {
	if j.FilledBy.Has(id) {
		return true
	}
	if j.Free() <= 0 {
		return false
	}
	j.FilledBy.Put(id)
	return true
}

// Release frees the slot held by id, if any.
func (j *Jobs) Release(id ResidentID) {
	j.FilledBy.Remove(id)
}

// Clear releases every slot.
func (j *Jobs) Clear() {
	j.FilledBy = mapset.New[ResidentID]()
}

// Clone returns a pool with its own copy of the reserved set.
func (j *Jobs) Clone() *Jobs {
	c := newJobs(j.Total)
	j.FilledBy.Each(func(id ResidentID) {
		c.FilledBy.Put(id)
	})
	return c
}

// Workers returns the IDs holding slots, sorted for stable output.
func (j *Jobs) Workers() []ResidentID {
	ids := make([]ResidentID, 0, j.FilledBy.Size())
	j.FilledBy.Each(func(id ResidentID) {
		ids = append(ids, id)
	})
	sort.Slice(ids, func(a, b int) bool {
		if ids[a].Home != ids[b].Home {
			if ids[a].Home.Y != ids[b].Home.Y {
				return ids[a].Home.Y < ids[b].Home.Y
			}
			return ids[a].Home.X < ids[b].Home.X
		}
		return ids[a].Slot < ids[b].Slot
	})
	return ids
}

// MarshalJSON encodes the pool as {"total": n, "filled_by": [...]}.
func (j *Jobs) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Total    int          `json:"total"`
		FilledBy []ResidentID `json:"filled_by"`
	}{j.Total, j.Workers()})
}

// Cell is one grid position. The payload fields are only meaningful for the
// matching kind: Residents for houses, Jobs for factories.
type Cell struct {
	Kind      Kind       `json:"kind"`
	Level     int        `json:"level"`
	Residents []Resident `json:"residents,omitempty"`
	Jobs      *Jobs      `json:"jobs,omitempty"`
}

// newCell creates a level-1 cell of the given kind with its payload.
func newCell(at Coord, kind Kind) Cell {
	c := Cell{Kind: kind, Level: 1}
	c.growPayload(at)
	return c
}

// Restored creates a cell at an explicit level, as loaded from storage.
// Residents start at home and job pools start empty.
func Restored(at Coord, kind Kind, level int) Cell {
	switch kind {
	case KindEmpty, KindWater:
		return Cell{Kind: kind}
	}
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	c := Cell{Kind: kind, Level: level}
	c.growPayload(at)
	return c
}

// growPayload extends the kind payload to the capacity of the current level.
// It never shrinks.
func (c *Cell) growPayload(at Coord) {
	switch c.Kind {
	case KindHouse:
		capacity := HouseCapacity(c.Level)
		for slot := len(c.Residents); slot < capacity; slot++ {
			c.Residents = append(c.Residents, Resident{
				ID:    ResidentID{Home: at, Slot: slot},
				State: AtHome,
			})
		}
	case KindFactory:
		total := FactoryJobs(c.Level)
		if c.Jobs == nil {
			c.Jobs = newJobs(total)
		} else if c.Jobs.Total < total {
			c.Jobs.Total = total
		}
	}
}

// Clone returns a copy that shares no memory with c.
func (c *Cell) Clone() Cell {
	out := *c
	out.Residents = slices.Clone(c.Residents)
	for i := range out.Residents {
		r := &out.Residents[i]
		if r.Workplace != nil {
			w := *r.Workplace
			r.Workplace = &w
		}
		if r.DepartureTick != nil {
			d := *r.DepartureTick
			r.DepartureTick = &d
		}
	}
	if c.Jobs != nil {
		out.Jobs = c.Jobs.Clone()
	}
	return out
}

// Resident returns the resident in the given slot, or nil.
func (c *Cell) Resident(slot int) *Resident {
	if c.Kind != KindHouse || slot < 0 || slot >= len(c.Residents) {
		return nil
	}
	return &c.Residents[slot]
}

// Buildable reports whether a structure may be placed on the cell.
func (c *Cell) Buildable() bool {
	return c.Kind == KindEmpty
}

// Upgradable reports whether the cell kind has levels above 1.
func (c *Cell) Upgradable() bool {
	switch c.Kind {
	case KindEmpty, KindWater, KindRoad:
		return false
	}
	return c.Level < MaxLevel
}

// Conducts reports whether power flows through the cell.
func (c *Cell) Conducts() bool {
	return c.Kind != KindEmpty && c.Kind != KindWater
}

// NeedsRoad reports whether the cell requires road service.
func (c *Cell) NeedsRoad() bool {
	return c.Kind == KindHouse || c.Kind == KindFactory
}
