// Package feetech implements the register-level motor bus contract for
// Feetech STS-series servo arms (SO-100/SO-101 and friends) over a serial
// port.
package feetech

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/tactilekit/manipulator/pkg/robot"
)

const (
	defaultBaudRate = 1_000_000
	readTimeout     = 100 * time.Millisecond
)

// Bus drives all servos of one arm over a shared half-duplex serial bus.
// It implements robot.MotorsBus.
type Bus struct {
	cfg robot.ArmConfig

	mu        sync.Mutex
	port      wirePort
	cal       robot.CalibrationRecord
	connected bool
}

// New builds a bus for the given arm config. The serial port is opened on
// Connect, not here.
func New(cfg robot.ArmConfig) (*Bus, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("arm %q: no serial port configured", cfg.Name)
	}
	if len(cfg.Motors) == 0 {
		return nil, fmt.Errorf("arm %q: no motors configured", cfg.Name)
	}
	return &Bus{cfg: cfg}, nil
}

// Factory returns a device factory whose motor-bus constructor builds
// feetech buses. Camera and tactile constructors are left nil for the
// integrator to fill in.
func Factory() robot.DeviceFactory {
	return robot.DeviceFactory{
		NewMotorsBus: func(cfg robot.ArmConfig) (robot.MotorsBus, error) {
			if cfg.Bus != "" && cfg.Bus != "feetech" {
				return nil, fmt.Errorf("%w for bus type %q", robot.ErrNoDriver, cfg.Bus)
			}
			return New(cfg)
		},
	}
}

// Connect opens the serial port.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return fmt.Errorf("arm %q: bus already connected", b.cfg.Name)
	}

	baud := b.cfg.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	port, err := serial.Open(b.cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", b.cfg.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}

	b.port = port
	b.connected = true
	return nil
}

// Disconnect closes the serial port. Safe to call repeatedly.
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil
	}
	b.connected = false
	err := b.port.Close()
	b.port = nil
	return err
}

// SetCalibration installs the calibration record used to express position
// registers in canonical units.
func (b *Bus) SetCalibration(cal robot.CalibrationRecord) error {
	for _, m := range b.cfg.Motors {
		if _, ok := cal[m.Name]; !ok {
			return fmt.Errorf("arm %q: calibration missing motor %q", b.cfg.Name, m.Name)
		}
	}
	b.mu.Lock()
	b.cal = cal
	b.mu.Unlock()
	return nil
}

// MotorNames returns the configured motor names in order.
func (b *Bus) MotorNames() []string {
	return b.cfg.MotorNames()
}

func (b *Bus) selectMotors(motors []string) ([]robot.Motor, error) {
	if len(motors) == 0 {
		return b.cfg.Motors, nil
	}
	selected := make([]robot.Motor, 0, len(motors))
	for _, want := range motors {
		found := false
		for _, m := range b.cfg.Motors {
			if m.Name == want {
				selected = append(selected, m)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("arm %q: unknown motor %q", b.cfg.Name, want)
		}
	}
	return selected, nil
}

// Read reads a register from the selected motors (all motors when none are
// named), one value per motor in selection order. Position registers are
// returned in calibrated units once calibration is set.
func (b *Bus) Read(ctx context.Context, registerName string, motors ...string) ([]float64, error) {
	reg, ok := controlTable[registerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegister, registerName)
	}
	selected, err := b.selectMotors(motors)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, fmt.Errorf("arm %q: bus not connected", b.cfg.Name)
	}

	values := make([]float64, len(selected))
	for i, m := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := b.readRegister(byte(m.ID), reg)
		if err != nil {
			return nil, fmt.Errorf("read %s from motor %q: %w", registerName, m.Name, err)
		}
		if positionRegisters[registerName] {
			values[i] = b.normalize(m.Name, raw)
		} else {
			values[i] = float64(raw)
		}
	}
	return values, nil
}

// Write writes a register on the selected motors. A single value
// broadcasts over the selection; otherwise one value per motor is
// required. Goal_Position goes out as one sync-write packet so all motors
// start moving together.
func (b *Bus) Write(ctx context.Context, registerName string, values []float64, motors ...string) error {
	reg, ok := controlTable[registerName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegister, registerName)
	}
	selected, err := b.selectMotors(motors)
	if err != nil {
		return err
	}
	if len(values) != 1 && len(values) != len(selected) {
		return fmt.Errorf("arm %q: %d values for %d motors", b.cfg.Name, len(values), len(selected))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return fmt.Errorf("arm %q: bus not connected", b.cfg.Name)
	}

	raw := make([]int, len(selected))
	ids := make([]byte, len(selected))
	for i, m := range selected {
		v := values[0]
		if len(values) > 1 {
			v = values[i]
		}
		if positionRegisters[registerName] {
			raw[i] = b.denormalize(m.Name, v)
		} else {
			raw[i] = int(math.Round(v))
		}
		ids[i] = byte(m.ID)
	}

	if registerName == "Goal_Position" {
		return b.syncWrite(reg, ids, raw)
	}
	for i, m := range selected {
		if err := b.writeRegister(ids[i], reg, raw[i]); err != nil {
			return fmt.Errorf("write %s to motor %q: %w", registerName, m.Name, err)
		}
	}
	return nil
}

// normalize maps a raw tick count to the canonical range: degrees in
// [-180,180] for rotary joints, [0,100] for the gripper. Without
// calibration raw ticks pass through unchanged.
func (b *Bus) normalize(motor string, raw int) float64 {
	mc, ok := b.cal[motor]
	if !ok {
		return float64(raw)
	}
	span := float64(mc.RangeMax - mc.RangeMin)
	if span == 0 {
		return 0
	}
	frac := float64(raw-mc.HomingOffset-mc.RangeMin) / span
	if mc.DriveMode != 0 {
		frac = 1 - frac
	}
	if motor == "gripper" {
		return frac * 100
	}
	return frac*360 - 180
}

// denormalize is the inverse mapping, clamped to the calibrated range.
func (b *Bus) denormalize(motor string, value float64) int {
	mc, ok := b.cal[motor]
	if !ok {
		return int(math.Round(value))
	}
	var frac float64
	if motor == "gripper" {
		frac = value / 100
	} else {
		frac = (value + 180) / 360
	}
	if mc.DriveMode != 0 {
		frac = 1 - frac
	}
	span := float64(mc.RangeMax - mc.RangeMin)
	raw := int(math.Round(frac*span)) + mc.RangeMin + mc.HomingOffset
	if raw < mc.RangeMin+mc.HomingOffset {
		raw = mc.RangeMin + mc.HomingOffset
	}
	if raw > mc.RangeMax+mc.HomingOffset {
		raw = mc.RangeMax + mc.HomingOffset
	}
	return raw
}
