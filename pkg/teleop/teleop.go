// Package teleop runs the fixed-rate teleoperation loop on top of a
// connected manipulator.
package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tactilekit/manipulator/pkg/robot"
)

// Stepper is the slice of the manipulator the control loop needs.
type Stepper interface {
	TeleopStep(ctx context.Context, recordData bool) (robot.Observation, []float64, error)
	HasTactileCriticalErrors() bool
}

// State is one control-loop iteration's result.
type State struct {
	Observation  robot.Observation
	Action       []float64
	TactileAlert bool
	Timestamp    time.Time
	Error        error
}

// Controller drives a manipulator's teleop step at a fixed rate and fans
// results out to consumers (TUI, recorders).
type Controller struct {
	stepper Stepper
	hz      int
	record  bool

	mu      sync.Mutex
	running bool
	stateCh chan State
	logCh   chan string
}

// Config holds configuration for the controller.
type Config struct {
	Hz     int
	Record bool // capture observations each step, not just mirror
}

// NewController creates a controller over an already-built manipulator.
func NewController(s Stepper, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	return &Controller{
		stepper: s,
		hz:      cfg.Hz,
		record:  cfg.Record,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until the context is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	c.log("Teleoperation started at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	obs, action, err := c.stepper.TeleopStep(ctx, c.record)
	if err != nil {
		c.log("Step error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	alert := false
	if c.record {
		alert = c.stepper.HasTactileCriticalErrors()
		if alert {
			c.log("Warning: tactile sensor reporting a critical error")
		}
	}

	c.sendState(State{
		Observation:  obs,
		Action:       action,
		TactileAlert: alert,
		Timestamp:    time.Now(),
	})
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.log("Teleoperation stopped")
}
