package robot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// writeOp records one bus register write for assertions.
type writeOp struct {
	register string
	values   []float64
	motors   []string
}

// stubBus is an in-memory MotorsBus. Present_Position reads return the
// positions slice; register writes are recorded in order.
type stubBus struct {
	mu        sync.Mutex
	names     []string
	positions []float64
	registers map[string][]float64 // per-register canned read values

	connectErr    error
	disconnectErr error
	readErr       error
	writeErr      error

	connects    int
	disconnects int
	reads       int
	writes      []writeOp
	cal         CalibrationRecord
}

func newStubBus(names []string, positions []float64) *stubBus {
	return &stubBus{names: names, positions: positions, registers: map[string][]float64{}}
}

func (b *stubBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	return b.connectErr
}

func (b *stubBus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects++
	return b.disconnectErr
}

func (b *stubBus) Read(ctx context.Context, register string, motors ...string) ([]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.readErr != nil {
		return nil, b.readErr
	}
	if canned, ok := b.registers[register]; ok {
		return append([]float64{}, canned...), nil
	}
	if register == "Present_Position" {
		return append([]float64{}, b.positions...), nil
	}
	return make([]float64, max(len(motors), 1)), nil
}

func (b *stubBus) Write(ctx context.Context, register string, values []float64, motors ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.writes = append(b.writes, writeOp{
		register: register,
		values:   append([]float64{}, values...),
		motors:   append([]string{}, motors...),
	})
	return nil
}

func (b *stubBus) SetCalibration(cal CalibrationRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cal = cal
	return nil
}

func (b *stubBus) MotorNames() []string { return b.names }

// writesTo filters the recorded writes by register name.
func (b *stubBus) writesTo(register string) []writeOp {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []writeOp
	for _, w := range b.writes {
		if w.register == register {
			out = append(out, w)
		}
	}
	return out
}

type stubCamera struct {
	img     Image
	readErr error
	reads   int
}

func (c *stubCamera) Connect(ctx context.Context) error { return nil }
func (c *stubCamera) Disconnect() error                 { return nil }
func (c *stubCamera) Latency() time.Duration            { return 5 * time.Millisecond }

func (c *stubCamera) AsyncRead() (Image, error) {
	c.reads++
	if c.readErr != nil {
		return Image{}, c.readErr
	}
	return c.img, nil
}

type stubSensor struct {
	payload *TactilePayload
	readErr error
	delay   time.Duration

	critical      bool
	status        map[string]string
	disconnectErr error

	mu            sync.Mutex
	reads         int
	disconnects   int
	forceReleases int
}

func (s *stubSensor) Connect(ctx context.Context) error { return nil }

func (s *stubSensor) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return s.disconnectErr
}

func (s *stubSensor) ForceRelease() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceReleases++
	return nil
}

func (s *stubSensor) Read(ctx context.Context) (*TactilePayload, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.payload, nil
}

func (s *stubSensor) HasCriticalError() bool { return s.critical }

func (s *stubSensor) ErrorStatus() map[string]string {
	if s.status == nil {
		return map[string]string{}
	}
	return s.status
}

func (s *stubSensor) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// stubFactory wires pre-built stub devices into a DeviceFactory, keyed by
// config name.
func stubFactory(buses map[string]*stubBus, cams map[string]*stubCamera, sensors map[string]*stubSensor) DeviceFactory {
	return DeviceFactory{
		NewMotorsBus: func(cfg ArmConfig) (MotorsBus, error) {
			if b, ok := buses[cfg.Name]; ok {
				return b, nil
			}
			return nil, fmt.Errorf("no stub bus for %q", cfg.Name)
		},
		NewCamera: func(cfg CameraConfig) (Camera, error) {
			if c, ok := cams[cfg.Name]; ok {
				return c, nil
			}
			return nil, fmt.Errorf("no stub camera for %q", cfg.Name)
		},
		NewTactileSensor: func(cfg TactileConfig) (TactileSensor, error) {
			if s, ok := sensors[cfg.Name]; ok {
				return s, nil
			}
			return nil, fmt.Errorf("no stub sensor for %q", cfg.Name)
		},
	}
}

// fixedCalibrator returns the same record for every arm.
func fixedCalibrator(cal CalibrationRecord) Calibrator {
	return CalibratorFunc(func(ctx context.Context, arm MotorsBus, robotType RobotType, armName string, role ArmRole) (CalibrationRecord, error) {
		return cal, nil
	})
}

func testMotors(names ...string) []Motor {
	motors := make([]Motor, len(names))
	for i, name := range names {
		motors[i] = Motor{Name: name, ID: i + 1, Model: "sts3215"}
	}
	return motors
}

func flatCalibration(names ...string) CalibrationRecord {
	cal := CalibrationRecord{}
	for i, name := range names {
		cal[name] = MotorCalibration{ID: i + 1, RangeMin: 0, RangeMax: 4096}
	}
	return cal
}
