package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock drives a Simulation forward at a fixed cadence. Host commands run
// through Exec so they never interleave with a tick.
type Clock struct {
	Interval time.Duration // Base tick interval

	// AfterTick runs under the clock lock once each tick has completed.
	// Hosts use it to drain events.
	AfterTick func(sim *Simulation)

	mu      sync.Mutex
	sim     *Simulation
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	stop    chan struct{}
}

// NewClock creates a clock for sim running at real-time speed.
func NewClock(sim *Simulation, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{
		Interval: interval,
		sim:      sim,
		speed:    1.0,
	}
}

// Exec runs fn with exclusive access to the simulation, between ticks.
func (c *Clock) Exec(fn func(sim *Simulation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.sim)
}

// Step advances the simulation by one tick.
func (c *Clock) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sim.Advance()
	if c.AfterTick != nil {
		c.AfterTick(c.sim)
	}
}

// Speed returns the current speed multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed changes the multiplier. Zero pauses; negative values are rejected.
func (c *Clock) SetSpeed(speed float64) error {
	if speed < 0 {
		return fmt.Errorf("speed must not be negative, got %v", speed)
	}
	c.mu.Lock()
	c.speed = speed
	c.mu.Unlock()
	slog.Info("clock speed changed", "speed", speed)
	return nil
}

// Running reports whether Run is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Run ticks until ctx is cancelled or Stop is called.
func (c *Clock) Run(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	stop := c.stop
	tick := c.sim.Tick
	c.mu.Unlock()

	slog.Info("simulation clock started", "tick", tick, "speed", c.Speed())
	defer func() {
		c.mu.Lock()
		c.running = false
		tick := c.sim.Tick
		c.mu.Unlock()
		slog.Info("simulation clock stopped", "tick", tick)
	}()

	for {
		speed := c.Speed()
		wait := 100 * time.Millisecond
		if speed > 0 {
			start := time.Now()
			c.Step()
			wait = time.Duration(float64(c.Interval)/speed) - time.Since(start)
		}
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// Stop halts a running loop. It is safe to call when not running.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// SimTime formats a tick as simulated calendar time: one pass is a month.
func SimTime(tick, ticksPerPass uint64) string {
	if ticksPerPass == 0 {
		ticksPerPass = DefaultTicksPerPass
	}
	months := tick / ticksPerPass
	month := months%12 + 1
	year := months/12 + 1
	return fmt.Sprintf("Month %d Year %d (tick %d)", month, year, tick)
}
