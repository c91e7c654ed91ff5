package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/mini-city/internal/traffic"
	"github.com/talgya/mini-city/internal/world"
)

// Command failures beyond the grid's own.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUpgradeLocked     = errors.New("land value too low for upgrade")
)

// Overlay modes a host may toggle. They have no simulation effect.
var OverlayModes = []string{"power", "road_access", "land_value", "traffic"}

// TileInfo is a cell together with its derived-layer values.
type TileInfo struct {
	At         world.Coord `json:"at"`
	Cell       world.Cell  `json:"cell"`
	Powered    bool        `json:"powered"`
	RoadAccess bool        `json:"road_access"`
	LandValue  int         `json:"land_value"`
	RoadMask   uint8       `json:"road_mask"`
}

// TileInfo returns a detached copy of the cell at at and the last computed
// layer values there.
func (s *Simulation) TileInfo(at world.Coord) (TileInfo, error) {
	cell := s.Grid.At(at)
	if cell == nil {
		return TileInfo{}, fmt.Errorf("tile %s: %w", at, world.ErrInvalidCoordinate)
	}
	return TileInfo{
		At:         at,
		Cell:       cell.Clone(),
		Powered:    s.Power.At(at),
		RoadAccess: s.RoadAccess.At(at),
		LandValue:  s.LandValue.At(at),
		RoadMask:   s.RoadMask.At(at),
	}, nil
}

// Build charges for and places a structure.
func (s *Simulation) Build(at world.Coord, kind world.Kind) error {
	if err := s.Grid.CanBuild(at, kind); err != nil {
		return err
	}
	cost := s.opts.Costs.BuildCost(kind)
	if cost > s.Cash {
		return fmt.Errorf("build %s at %s costs %d, have %d: %w", kind, at, cost, s.Cash, ErrInsufficientFunds)
	}
	if err := s.Grid.Build(at, kind); err != nil {
		return err
	}
	s.Cash -= cost

	s.EmitEvent(Event{
		Category:    CategoryBuilt,
		Description: fmt.Sprintf("built %s at %s", kind, at),
		At:          &at,
		Kind:        &kind,
	})
	slog.Info("built", "kind", kind.String(), "at", at.String(), "cost", cost, "cash", s.Cash)
	return nil
}

// Upgrade charges for and raises a structure one level. Houses also need
// the last computed land value above the threshold for the next level.
func (s *Simulation) Upgrade(at world.Coord) error {
	if err := s.Grid.CanUpgrade(at); err != nil {
		return err
	}
	cell := s.Grid.At(at)
	next := cell.Level + 1
	if value := s.LandValue.At(at); !s.opts.Costs.UpgradeAllowed(cell.Kind, next, value) {
		return fmt.Errorf("upgrade %s at %s to level %d with land value %d: %w", cell.Kind, at, next, value, ErrUpgradeLocked)
	}
	cost := s.opts.Costs.Upgrade
	if cost > s.Cash {
		return fmt.Errorf("upgrade at %s costs %d, have %d: %w", at, cost, s.Cash, ErrInsufficientFunds)
	}
	if err := s.Grid.Upgrade(at); err != nil {
		return err
	}
	s.Cash -= cost

	kind := cell.Kind
	s.EmitEvent(Event{
		Category:    CategoryUpgraded,
		Description: fmt.Sprintf("upgraded %s at %s to level %d", kind, at, cell.Level),
		At:          &at,
		Kind:        &kind,
	})
	slog.Info("upgraded", "kind", kind.String(), "at", at.String(), "level", cell.Level, "cash", s.Cash)
	return nil
}

// Demolish clears a cell and refunds part of its build cost. Residents and
// workers tied to the cell are sent home and their trips dropped first.
func (s *Simulation) Demolish(at world.Coord) error {
	cell := s.Grid.At(at)
	if cell == nil {
		return fmt.Errorf("demolish at %s: %w", at, world.ErrInvalidCoordinate)
	}
	if cell.Kind == world.KindEmpty {
		return fmt.Errorf("demolish at %s: %w", at, world.ErrIllegalMutation)
	}
	kind := cell.Kind

	switch kind {
	case world.KindHouse:
		s.evictResidents(at, cell)
	case world.KindFactory:
		s.dismissWorkers(at, cell)
	}

	if err := s.Grid.Demolish(at); err != nil {
		return err
	}
	refund := s.opts.Costs.Refund(kind)
	s.Cash += refund

	if s.Selected != nil && *s.Selected == at {
		s.Selected = nil
	}
	s.EmitEvent(Event{
		Category:    CategoryDemolished,
		Description: fmt.Sprintf("demolished %s at %s", kind, at),
		At:          &at,
		Kind:        &kind,
	})
	slog.Info("demolished", "kind", kind.String(), "at", at.String(), "refund", refund, "cash", s.Cash)
	return nil
}

// evictResidents gives back every job slot held by the house's residents
// and drops their vehicles.
func (s *Simulation) evictResidents(home world.Coord, cell *world.Cell) {
	for i := range cell.Residents {
		r := &cell.Residents[i]
		if r.Workplace == nil {
			continue
		}
		if f := s.Grid.At(*r.Workplace); f != nil && f.Kind == world.KindFactory {
			f.Jobs.Release(r.ID)
		}
	}
	dropped := s.Traffic.Remove(func(v *traffic.Vehicle) bool { return v.Resident.Home == home })
	slog.Debug("residents evicted", "home", home.String(), "vehicles", dropped)
}

// dismissWorkers sends every worker of the factory home and drops their
// vehicles.
func (s *Simulation) dismissWorkers(factory world.Coord, cell *world.Cell) {
	workers := cell.Jobs.Workers()
	gone := make(map[world.ResidentID]bool, len(workers))
	for _, id := range workers {
		gone[id] = true
		if r := s.resident(id); r != nil {
			r.State = world.AtHome
			r.Workplace = nil
			r.DepartureTick = nil
		}
	}
	dropped := s.Traffic.Remove(func(v *traffic.Vehicle) bool { return gone[v.Resident] })
	slog.Debug("workers dismissed", "factory", factory.String(), "workers", len(workers), "vehicles", dropped)
}

// SelectTile records the selection and returns the tile's details.
func (s *Simulation) SelectTile(at world.Coord) (TileInfo, error) {
	info, err := s.TileInfo(at)
	if err != nil {
		return info, err
	}
	s.Selected = &at
	s.EmitEvent(Event{
		Category:    CategoryTileSelected,
		Description: fmt.Sprintf("selected %s", at),
		At:          &at,
		Tile:        &info,
	})
	return info, nil
}

// Deselect clears the selection. It reports whether anything was selected.
func (s *Simulation) Deselect() bool {
	if s.Selected == nil {
		return false
	}
	at := *s.Selected
	s.Selected = nil
	s.EmitEvent(Event{
		Category:    CategoryTileDeselected,
		Description: fmt.Sprintf("deselected %s", at),
		At:          &at,
	})
	return true
}

// ToggleOverlay flips a display overlay and returns its new state.
func (s *Simulation) ToggleOverlay(mode string) (bool, error) {
	if !slices.Contains(OverlayModes, mode) {
		return false, fmt.Errorf("unknown overlay %q", mode)
	}
	enabled := !s.Overlays[mode]
	s.Overlays[mode] = enabled
	s.EmitEvent(Event{
		Category:    CategoryOverlay,
		Description: fmt.Sprintf("overlay %s enabled=%t", mode, enabled),
		Overlay:     &OverlayState{Mode: mode, Enabled: enabled},
	})
	return enabled, nil
}
