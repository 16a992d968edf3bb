// Package robot provides the session-level controller for manipulator
// robots: device registry, calibration, robot-type presets, the safety
// clamp, synchronized multi-modal capture and the teleoperation step.
package robot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manipulator is the session-level controller unifying arm motor buses,
// cameras and tactile sensors into one synchronized control and observation
// loop. It exclusively owns its devices; a single caller drives the loop
// (concurrent TeleopStep/CaptureObservation/SendAction calls are undefined).
type Manipulator struct {
	cfg     Config
	family  family
	session string

	leaders   []namedBus
	followers []namedBus
	cameras   []namedCamera
	tactile   []namedSensor

	rotaryCalibrator Calibrator
	manualCalibrator Calibrator
	signalHandling   bool

	// mu guards the lifecycle state and the diagnostics map, which the
	// monitor server reads concurrently with the control loop.
	mu        sync.Mutex
	connected bool
	diag      map[string]any
}

type options struct {
	factory          DeviceFactory
	rotaryCalibrator Calibrator
	manualCalibrator Calibrator
	signalHandling   bool
}

// Option customizes manipulator construction.
type Option func(*options)

// WithDeviceFactory installs the constructors used to build devices from
// their configs.
func WithDeviceFactory(f DeviceFactory) Option {
	return func(o *options) { o.factory = f }
}

// WithRotaryCalibrator installs the calibration routine for rotary-encoder
// arm families (koch, aloha).
func WithRotaryCalibrator(c Calibrator) Option {
	return func(o *options) { o.rotaryCalibrator = c }
}

// WithManualCalibrator installs the manual calibration routine for the
// feetech arm families (so100, so101, moss, lekiwi).
func WithManualCalibrator(c Calibrator) Option {
	return func(o *options) { o.manualCalibrator = c }
}

// WithoutSignalHandler disables SIGINT/SIGTERM interception for this
// manipulator. Teardown then relies on the caller's own Disconnect.
func WithoutSignalHandler() Option {
	return func(o *options) { o.signalHandling = false }
}

// New builds a manipulator from configuration. Devices are constructed but
// not connected; ordering of arms, cameras and sensors is fixed here for
// the lifetime of the controller.
func New(cfg Config, opts ...Option) (*Manipulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fam, err := familyFor(cfg.Type)
	if err != nil {
		return nil, err
	}

	o := options{signalHandling: true}
	for _, opt := range opts {
		opt(&o)
	}

	leaders, err := buildArms(o.factory, cfg.LeaderArms, RoleLeader)
	if err != nil {
		return nil, err
	}
	followers, err := buildArms(o.factory, cfg.FollowerArms, RoleFollower)
	if err != nil {
		return nil, err
	}
	cameras, err := buildCameras(o.factory, cfg.Cameras)
	if err != nil {
		return nil, err
	}
	tactile, err := buildTactile(o.factory, cfg.TactileSensors)
	if err != nil {
		return nil, err
	}

	return &Manipulator{
		cfg:              cfg,
		family:           fam,
		leaders:          leaders,
		followers:        followers,
		cameras:          cameras,
		tactile:          tactile,
		rotaryCalibrator: o.rotaryCalibrator,
		manualCalibrator: o.manualCalibrator,
		signalHandling:   o.signalHandling,
		diag:             map[string]any{},
	}, nil
}

// Connect connects every device, applies stored or freshly-run calibration,
// and runs the robot-type preset. Calling Connect on a connected
// manipulator returns ErrAlreadyConnected. On partial failure every device
// connected so far is disconnected again before the error returns.
func (m *Manipulator) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.mu.Unlock()

	if len(m.leaders) == 0 && len(m.followers) == 0 && len(m.cameras) == 0 && len(m.tactile) == 0 {
		return ErrNoDevices
	}

	var undo []func() error
	unwind := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			if err := undo[i](); err != nil {
				log.Printf("disconnect during failed connect: %v", err)
			}
		}
	}

	for _, arm := range m.leaders {
		log.Printf("connecting %s leader arm", arm.name)
		if err := arm.bus.Connect(ctx); err != nil {
			unwind()
			return fmt.Errorf("connect leader arm %q: %w", arm.name, err)
		}
		undo = append(undo, arm.bus.Disconnect)
	}
	for _, arm := range m.followers {
		log.Printf("connecting %s follower arm", arm.name)
		if err := arm.bus.Connect(ctx); err != nil {
			unwind()
			return fmt.Errorf("connect follower arm %q: %w", arm.name, err)
		}
		undo = append(undo, arm.bus.Disconnect)
	}
	for _, cam := range m.cameras {
		log.Printf("connecting %s camera", cam.name)
		if err := cam.cam.Connect(ctx); err != nil {
			unwind()
			return fmt.Errorf("connect camera %q: %w", cam.name, err)
		}
		undo = append(undo, cam.cam.Disconnect)
	}
	for _, s := range m.tactile {
		log.Printf("connecting %s tactile sensor", s.name)
		if err := s.sensor.Connect(ctx); err != nil {
			unwind()
			return fmt.Errorf("connect tactile sensor %q: %w", s.name, err)
		}
		undo = append(undo, s.sensor.Disconnect)
	}

	if err := m.activateCalibration(ctx); err != nil {
		unwind()
		return err
	}
	if err := m.applyPreset(ctx); err != nil {
		unwind()
		return err
	}

	m.mu.Lock()
	m.connected = true
	m.session = uuid.NewString()
	m.diag = map[string]any{}
	m.mu.Unlock()

	if m.signalHandling {
		shutdownHooks.register(m)
	}
	return nil
}

// Disconnect tears down every device. Per-device failures are logged and
// teardown proceeds; the manipulator always ends disconnected. A second
// Disconnect returns ErrNotConnected.
func (m *Manipulator) Disconnect() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.connected = false
	m.mu.Unlock()

	m.teardown()
	return nil
}

// forceDisconnect is the signal-path variant: it no-ops when already torn
// down and never panics.
func (m *Manipulator) forceDisconnect() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic during forced disconnect: %v", r)
		}
	}()
	if err := m.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Printf("forced disconnect: %v", err)
	}
}

func (m *Manipulator) teardown() {
	for _, arm := range m.followers {
		if err := arm.bus.Disconnect(); err != nil {
			log.Printf("disconnect follower arm %q: %v", arm.name, err)
		}
	}
	for _, arm := range m.leaders {
		if err := arm.bus.Disconnect(); err != nil {
			log.Printf("disconnect leader arm %q: %v", arm.name, err)
		}
	}
	for _, cam := range m.cameras {
		if err := cam.cam.Disconnect(); err != nil {
			log.Printf("disconnect camera %q: %v", cam.name, err)
		}
	}
	for _, s := range m.tactile {
		if err := s.sensor.Disconnect(); err != nil {
			log.Printf("disconnect tactile sensor %q: %v", s.name, err)
			// Structured disconnect failed; reclaim resources the hard way
			// if the driver offers it.
			if fr, ok := s.sensor.(ForceReleaser); ok {
				if rerr := fr.ForceRelease(); rerr != nil {
					log.Printf("force release tactile sensor %q: %v", s.name, rerr)
				}
			}
		}
	}

	if m.signalHandling {
		shutdownHooks.unregister(m)
	}
	log.Printf("manipulator disconnected")
}

// TeleopStep runs one teleoperation tick: read each leader arm's present
// position, clamp it against the paired follower's present position when a
// relative-target bound is configured, and write it as the follower's goal.
// With recordData set it additionally captures a full observation and
// returns it along with the action actually sent (post-clamp, concatenated
// in follower order). Without recordData both return values are nil.
func (m *Manipulator) TeleopStep(ctx context.Context, recordData bool) (Observation, []float64, error) {
	if !m.Connected() {
		return nil, nil, ErrNotConnected
	}

	leaderPos := map[string][]float64{}
	for _, arm := range m.leaders {
		start := time.Now()
		pos, err := arm.bus.Read(ctx, "Present_Position")
		if err != nil {
			return nil, nil, fmt.Errorf("read leader arm %q: %w", arm.name, err)
		}
		leaderPos[arm.name] = pos
		m.setDiag(fmt.Sprintf("read_leader_%s_pos_dt_s", arm.name), time.Since(start).Seconds())
	}

	goals := make([][]float64, len(m.followers))
	for i, arm := range m.followers {
		start := time.Now()
		goal, ok := leaderPos[arm.name]
		if !ok {
			return nil, nil, fmt.Errorf("follower arm %q has no matching leader arm", arm.name)
		}

		if m.cfg.MaxRelativeTarget != nil {
			present, err := arm.bus.Read(ctx, "Present_Position")
			if err != nil {
				return nil, nil, fmt.Errorf("read follower arm %q: %w", arm.name, err)
			}
			goal = ClampGoal(goal, present, *m.cfg.MaxRelativeTarget)
		}
		goals[i] = goal

		if err := arm.bus.Write(ctx, "Goal_Position", goal); err != nil {
			return nil, nil, fmt.Errorf("write follower arm %q: %w", arm.name, err)
		}
		m.setDiag(fmt.Sprintf("write_follower_%s_goal_pos_dt_s", arm.name), time.Since(start).Seconds())
	}

	if !recordData {
		return nil, nil, nil
	}

	obs := m.captureObservation(ctx)

	var action []float64
	for _, goal := range goals {
		action = append(action, goal...)
	}
	return obs, action, nil
}

// SendAction commands the follower arms to move to the target joint
// configuration. The flat action vector is split by follower motor counts
// in registry order and each segment is clamped against that follower's
// present position when a bound is configured. The returned vector is the
// action actually sent; callers must treat it, not their input, as ground
// truth.
func (m *Manipulator) SendAction(ctx context.Context, action []float64) ([]float64, error) {
	if !m.Connected() {
		return nil, ErrNotConnected
	}

	total := 0
	for _, arm := range m.followers {
		total += len(arm.bus.MotorNames())
	}
	if len(action) != total {
		return nil, fmt.Errorf("action has %d values, want %d", len(action), total)
	}

	var sent []float64
	from := 0
	for _, arm := range m.followers {
		to := from + len(arm.bus.MotorNames())
		goal := action[from:to]
		from = to

		if m.cfg.MaxRelativeTarget != nil {
			present, err := arm.bus.Read(ctx, "Present_Position")
			if err != nil {
				return nil, fmt.Errorf("read follower arm %q: %w", arm.name, err)
			}
			goal = ClampGoal(goal, present, *m.cfg.MaxRelativeTarget)
		}

		if err := arm.bus.Write(ctx, "Goal_Position", goal); err != nil {
			return nil, fmt.Errorf("write follower arm %q: %w", arm.name, err)
		}
		sent = append(sent, goal...)
	}
	return sent, nil
}

// Connected reports whether the manipulator is connected.
func (m *Manipulator) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SessionID returns the id assigned to the current connect session, or the
// empty string before the first connect.
func (m *Manipulator) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// RobotType returns the configured robot family tag.
func (m *Manipulator) RobotType() RobotType {
	return m.cfg.Type
}

// Features returns the static feature schema for this configuration.
func (m *Manipulator) Features() map[string]Feature {
	return Features(m.cfg)
}

// AvailableArms lists the arm identities, followers first.
func (m *Manipulator) AvailableArms() []string {
	var arms []string
	for _, arm := range m.followers {
		arms = append(arms, ArmID(arm.name, RoleFollower))
	}
	for _, arm := range m.leaders {
		arms = append(arms, ArmID(arm.name, RoleLeader))
	}
	return arms
}

// HasTactileCriticalErrors reports whether any tactile sensor has latched a
// critical error. The controller never halts on this by itself; acting on
// it is the caller's decision.
func (m *Manipulator) HasTactileCriticalErrors() bool {
	for _, s := range m.tactile {
		if s.sensor.HasCriticalError() {
			return true
		}
	}
	return false
}

// TactileErrorSummary returns the error status of every sensor currently
// reporting a critical error.
func (m *Manipulator) TactileErrorSummary() map[string]map[string]string {
	summary := map[string]map[string]string{}
	for _, s := range m.tactile {
		if s.sensor.HasCriticalError() {
			summary[s.name] = s.sensor.ErrorStatus()
		}
	}
	return summary
}

// Diagnostics returns a copy of the session diagnostics: per-stage capture
// timings in seconds and latched tactile error flags.
func (m *Manipulator) Diagnostics() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.diag))
	for k, v := range m.diag {
		out[k] = v
	}
	return out
}

func (m *Manipulator) setDiag(key string, value any) {
	m.mu.Lock()
	m.diag[key] = value
	m.mu.Unlock()
}
