package engine

import (
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/world"
)

// Event categories.
const (
	CategoryBuilt          = "built"
	CategoryUpgraded       = "upgraded"
	CategoryDemolished     = "demolished"
	CategoryTileSelected   = "tile_selected"
	CategoryTileDeselected = "tile_deselected"
	CategoryOverlay        = "overlay"
	CategoryEconomy        = "economy"
	CategoryReset          = "reset"
)

// Event is a notification for renderers and other hosts. Only the payload
// field matching the category is set.
type Event struct {
	Tick        uint64          `json:"tick"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	At          *world.Coord    `json:"at,omitempty"`
	Kind        *world.Kind     `json:"kind,omitempty"`
	Tile        *TileInfo       `json:"tile,omitempty"`
	Report      *economy.Report `json:"report,omitempty"`
	Overlay     *OverlayState   `json:"overlay,omitempty"`
}

// OverlayState is the payload of an overlay toggle.
type OverlayState struct {
	Mode    string `json:"mode"`
	Enabled bool   `json:"enabled"`
}

// EmitEvent queues an event for the host.
func (s *Simulation) EmitEvent(e Event) {
	if e.Tick == 0 {
		e.Tick = s.Tick
	}
	s.pending = append(s.pending, e)
}

// DrainEvents returns the queued events in emission order and clears the queue.
// Hosts call it once per tick.
func (s *Simulation) DrainEvents() []Event {
	events := s.pending
	s.pending = nil
	return events
}

// PendingEvents returns how many events are waiting to be drained.
func (s *Simulation) PendingEvents() int {
	return len(s.pending)
}
