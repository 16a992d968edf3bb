package robot

import (
	"context"
	"fmt"
	"time"
)

// MotorsBus is the arm device contract. One instance drives all motors of a
// named arm over a shared bus. Implementations live outside this package
// (see pkg/drivers/feetech); the controller owns its instances exclusively.
//
// Read and Write address motors by register name (Present_Position,
// Goal_Position, Torque_Enable, ...). Read returns one value per selected
// motor, in configured motor order. Write broadcasts a single value over the
// selection, or writes one value per motor when len(values) matches.
type MotorsBus interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Read(ctx context.Context, register string, motors ...string) ([]float64, error)
	Write(ctx context.Context, register string, values []float64, motors ...string) error
	SetCalibration(cal CalibrationRecord) error
	MotorNames() []string
}

// Camera is the camera device contract. AsyncRead returns the most recent
// frame buffered by the camera's own acquisition loop and never blocks on
// frame cadence. Latency reports the age of the last frame for diagnostics.
type Camera interface {
	Connect(ctx context.Context) error
	Disconnect() error
	AsyncRead() (Image, error)
	Latency() time.Duration
}

// TactileSensor is the tactile sensor device contract. HasCriticalError and
// ErrorStatus are mandatory members: implementations without error tracking
// return false and an empty map.
type TactileSensor interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Read(ctx context.Context) (*TactilePayload, error)
	HasCriticalError() bool
	ErrorStatus() map[string]string
}

// ForceReleaser is an optional teardown escape hatch for tactile sensors
// whose structured disconnect can wedge (e.g. an external capture process
// that must be killed). It is only invoked after Disconnect has failed.
type ForceReleaser interface {
	ForceRelease() error
}

// DeviceFactory builds concrete devices from their configs. Any nil
// constructor rejects configs of that kind with ErrNoDriver, keeping the
// register-level drivers an external concern.
type DeviceFactory struct {
	NewMotorsBus     func(cfg ArmConfig) (MotorsBus, error)
	NewCamera        func(cfg CameraConfig) (Camera, error)
	NewTactileSensor func(cfg TactileConfig) (TactileSensor, error)
}

type namedBus struct {
	name string
	bus  MotorsBus
}

type namedCamera struct {
	name string
	cfg  CameraConfig
	cam  Camera
}

type namedSensor struct {
	name   string
	cfg    TactileConfig
	sensor TactileSensor
}

func buildArms(f DeviceFactory, cfgs []ArmConfig, role ArmRole) ([]namedBus, error) {
	arms := make([]namedBus, 0, len(cfgs))
	for _, cfg := range cfgs {
		if f.NewMotorsBus == nil {
			return nil, fmt.Errorf("%w for %s arm %q (bus %q)", ErrNoDriver, role, cfg.Name, cfg.Bus)
		}
		bus, err := f.NewMotorsBus(cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s arm %q: %w", role, cfg.Name, err)
		}
		arms = append(arms, namedBus{name: cfg.Name, bus: bus})
	}
	return arms, nil
}

func buildCameras(f DeviceFactory, cfgs []CameraConfig) ([]namedCamera, error) {
	cams := make([]namedCamera, 0, len(cfgs))
	for _, cfg := range cfgs {
		if f.NewCamera == nil {
			return nil, fmt.Errorf("%w for camera %q", ErrNoDriver, cfg.Name)
		}
		cam, err := f.NewCamera(cfg)
		if err != nil {
			return nil, fmt.Errorf("build camera %q: %w", cfg.Name, err)
		}
		cams = append(cams, namedCamera{name: cfg.Name, cfg: cfg, cam: cam})
	}
	return cams, nil
}

func buildTactile(f DeviceFactory, cfgs []TactileConfig) ([]namedSensor, error) {
	sensors := make([]namedSensor, 0, len(cfgs))
	for _, cfg := range cfgs {
		if f.NewTactileSensor == nil {
			return nil, fmt.Errorf("%w for tactile sensor %q (type %q)", ErrNoDriver, cfg.Name, cfg.Type)
		}
		s, err := f.NewTactileSensor(cfg)
		if err != nil {
			return nil, fmt.Errorf("build tactile sensor %q: %w", cfg.Name, err)
		}
		sensors = append(sensors, namedSensor{name: cfg.Name, cfg: cfg, sensor: s})
	}
	return sensors, nil
}
