package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/talgya/mini-city/internal/connectivity"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/landvalue"
	"github.com/talgya/mini-city/internal/world"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	speed := s.Clock.Speed()
	running := s.Clock.Running()
	s.read(w, func(sim *engine.Simulation) (any, error) {
		return map[string]any{
			"name":        "mini-city",
			"tick":        sim.CurrentTick(),
			"sim_time":    engine.SimTime(sim.CurrentTick(), sim.Options().TicksPerPass),
			"speed":       speed,
			"running":     running,
			"width":       sim.Grid.Width,
			"height":      sim.Grid.Height,
			"cash":        sim.Cash,
			"population":  sim.Report.Population,
			"vehicles":    sim.Traffic.Len(),
			"powered":     connectivity.PoweredCount(sim.Power),
			"mean_land":   landvalue.Mean(sim.LandValue),
			"kinds":       sim.Grid.CountKinds(),
			"selected":    sim.Selected,
			"overlays":    sim.Overlays,
			"subscribers": s.Hub.Subscribers(),
		}, nil
	})
}

type cellEntry struct {
	Kind  world.Kind `json:"kind"`
	Level int        `json:"level"`
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(sim *engine.Simulation) (any, error) {
		g := sim.Grid
		rows := make([][]cellEntry, g.Height)
		for y := range rows {
			rows[y] = make([]cellEntry, g.Width)
		}
		g.Each(func(at world.Coord, cell *world.Cell) {
			rows[at.Y][at.X] = cellEntry{Kind: cell.Kind, Level: cell.Level}
		})
		return map[string]any{
			"width":  g.Width,
			"height": g.Height,
			"cells":  rows,
		}, nil
	})
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "layer")
	s.read(w, func(sim *engine.Simulation) (any, error) {
		switch name {
		case "power":
			return sim.Power.Rows(), nil
		case "road_access":
			return sim.RoadAccess.Rows(), nil
		case "land_value":
			return sim.LandValue.Rows(), nil
		case "road_mask":
			return sim.RoadMask.Rows(), nil
		}
		return nil, fmt.Errorf("unknown layer %q (use: power, road_access, land_value, road_mask): %w", name, errNotFound)
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	at, err := coordParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.read(w, func(sim *engine.Simulation) (any, error) {
		return sim.TileInfo(at)
	})
}

type vehicleEntry struct {
	ID        uuid.UUID           `json:"id"`
	Resident  world.ResidentID    `json:"resident"`
	State     world.ResidentState `json:"state"`
	X         float64             `json:"x"`
	Y         float64             `json:"y"`
	To        world.Coord         `json:"to"`
	Remaining int                 `json:"remaining"`
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(sim *engine.Simulation) (any, error) {
		vehicles := sim.Traffic.Vehicles()
		out := make([]vehicleEntry, 0, len(vehicles))
		for _, v := range vehicles {
			out = append(out, vehicleEntry{
				ID:        v.ID,
				Resident:  v.Resident,
				State:     v.State,
				X:         v.X,
				Y:         v.Y,
				To:        v.To,
				Remaining: v.Remaining(),
			})
		}
		return out, nil
	})
}

func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	s.read(w, func(sim *engine.Simulation) (any, error) {
		report := sim.Report
		report.Cash = sim.Cash
		return report, nil
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	// Stored history reaches past restarts; the hub only holds this run.
	if s.DB != nil {
		events, err := s.DB.RecentEvents(limit)
		if err != nil {
			writeError(w, err)
			return
		}
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
		writeJSON(w, events)
		return
	}
	writeJSON(w, s.Hub.Recent(limit))
}

type coordRequest struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind,omitempty"`
}

func (c coordRequest) at() world.Coord {
	return world.Coord{X: c.X, Y: c.Y}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	kind, ok := world.ParseKind(req.Kind)
	if !ok {
		writeError(w, fmt.Errorf("unknown kind %q: %w", req.Kind, errBadRequest))
		return
	}
	s.command(w, func(sim *engine.Simulation) (any, error) {
		if err := sim.Build(req.at(), kind); err != nil {
			return nil, err
		}
		return sim.TileInfo(req.at())
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.command(w, func(sim *engine.Simulation) (any, error) {
		if err := sim.Upgrade(req.at()); err != nil {
			return nil, err
		}
		return sim.TileInfo(req.at())
	})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.command(w, func(sim *engine.Simulation) (any, error) {
		if err := sim.Demolish(req.at()); err != nil {
			return nil, err
		}
		return sim.TileInfo(req.at())
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req coordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.command(w, func(sim *engine.Simulation) (any, error) {
		return sim.SelectTile(req.at())
	})
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.command(w, func(sim *engine.Simulation) (any, error) {
		return map[string]bool{"deselected": sim.Deselect()}, nil
	})
}

// handleReset abandons all trips and sends every resident home.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.command(w, func(sim *engine.Simulation) (any, error) {
		return map[string]int{"vehicles_dropped": sim.Reset()}, nil
	})
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.command(w, func(sim *engine.Simulation) (any, error) {
		enabled, err := sim.ToggleOverlay(req.Mode)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, errBadRequest)
		}
		return engine.OverlayState{Mode: req.Mode, Enabled: enabled}, nil
	})
}

// handleSpeed reads (GET) or sets (POST) the clock speed. It must not run
// inside Exec: the clock guards its speed with the same lock.
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			writeError(w, fmt.Errorf("speed must be 0-1000: %w", errBadRequest))
			return
		}
		if err := s.Clock.SetSpeed(req.Speed); err != nil {
			writeError(w, fmt.Errorf("%w: %w", err, errBadRequest))
			return
		}
	}

	writeJSON(w, map[string]float64{"speed": s.Clock.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, fmt.Errorf("database not available: %w", errUnavailable))
		return
	}
	s.read(w, func(sim *engine.Simulation) (any, error) {
		if err := s.DB.SaveWorldState(sim); err != nil {
			slog.Error("snapshot save failed", "error", err)
			return nil, err
		}
		return map[string]any{
			"tick":    sim.CurrentTick(),
			"message": "snapshot saved",
		}, nil
	})
}
