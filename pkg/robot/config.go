package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

const DefaultConfigFile = "manipulator.json"

// RobotType selects the robot family. The set is closed: each type maps to
// one preset/calibration strategy chosen at connect time.
type RobotType string

const (
	RobotKoch         RobotType = "koch"
	RobotKochBimanual RobotType = "koch_bimanual"
	RobotAloha        RobotType = "aloha"
	RobotSO100        RobotType = "so100"
	RobotSO101        RobotType = "so101"
	RobotMoss         RobotType = "moss"
	RobotLeKiwi       RobotType = "lekiwi"
)

// Valid reports whether t is a supported robot type.
func (t RobotType) Valid() bool {
	switch t {
	case RobotKoch, RobotKochBimanual, RobotAloha, RobotSO100, RobotSO101, RobotMoss, RobotLeKiwi:
		return true
	}
	return false
}

// Motor describes one servo on an arm bus.
type Motor struct {
	Name  string `json:"name"`
	ID    int    `json:"id"`
	Model string `json:"model,omitempty"`
}

// ArmConfig describes one named arm (a motor bus with an ordered set of
// motors). The motor order here fixes the order of state and action vectors
// for the whole session.
type ArmConfig struct {
	Name     string  `json:"name"`
	Bus      string  `json:"bus"` // e.g. "feetech"
	Port     string  `json:"port"`
	BaudRate int     `json:"baud_rate,omitempty"`
	Motors   []Motor `json:"motors"`
}

// MotorNames returns the configured motor names in order.
func (a ArmConfig) MotorNames() []string {
	names := make([]string, len(a.Motors))
	for i, m := range a.Motors {
		names[i] = m.Name
	}
	return names
}

// CameraConfig describes one named camera. Width and height are declared
// here so the feature schema can be derived without touching hardware.
type CameraConfig struct {
	Name   string `json:"name"`
	Index  int    `json:"index,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps,omitempty"`
}

// SensorType selects the tactile sensor variant and with it the payload
// schema.
type SensorType string

const (
	SensorTac3D    SensorType = "tac3d"
	SensorGelSight SensorType = "gelsight"
	SensorDigit    SensorType = "digit"
	SensorUnknown  SensorType = "unknown"
)

// TactileConfig describes one named tactile sensor.
type TactileConfig struct {
	Name string     `json:"name"`
	Type SensorType `json:"type"`
	Port string     `json:"port,omitempty"`

	// GelSight image dimensions. Zero means the 240x320 default.
	ImageHeight int `json:"image_height,omitempty"`
	ImageWidth  int `json:"image_width,omitempty"`
}

func (t TactileConfig) imageDims() (h, w int) {
	h, w = t.ImageHeight, t.ImageWidth
	if h <= 0 {
		h = 240
	}
	if w <= 0 {
		w = 320
	}
	return h, w
}

// Config holds the full robot configuration. It is immutable after
// construction; arm, camera and sensor slices fix the registry iteration
// order for the session.
type Config struct {
	Type           RobotType `json:"type"`
	CalibrationDir string    `json:"calibration_dir" env:"MANIPULATOR_CALIBRATION_DIR"`

	LeaderArms     []ArmConfig     `json:"leader_arms"`
	FollowerArms   []ArmConfig     `json:"follower_arms"`
	Cameras        []CameraConfig  `json:"cameras,omitempty"`
	TactileSensors []TactileConfig `json:"tactile_sensors,omitempty"`

	// MaxRelativeTarget bounds the magnitude of any single relative motion
	// command, as a scalar or one bound per joint. Nil disables clamping.
	MaxRelativeTarget *RelativeTarget `json:"max_relative_target,omitempty"`

	// GripperOpenDegree, when set on Koch-family robots, arms the leader
	// gripper as a spring-loaded trigger at this angle.
	GripperOpenDegree *float64 `json:"gripper_open_degree,omitempty"`

	// TactileReadTimeout bounds one tactile sensor read during capture.
	// Zero means no timeout: a stalled sensor driver stalls the capture.
	TactileReadTimeout time.Duration `json:"tactile_read_timeout,omitempty" env:"MANIPULATOR_TACTILE_READ_TIMEOUT"`
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRobotType, c.Type)
	}
	seen := map[string]bool{}
	for _, group := range [][]ArmConfig{c.LeaderArms, c.FollowerArms} {
		for _, a := range group {
			if a.Name == "" {
				return fmt.Errorf("arm with empty name")
			}
			if len(a.Motors) == 0 {
				return fmt.Errorf("arm %q has no motors", a.Name)
			}
		}
	}
	for _, cam := range c.Cameras {
		if cam.Width <= 0 || cam.Height <= 0 {
			return fmt.Errorf("camera %q needs explicit width and height", cam.Name)
		}
		if seen["cam:"+cam.Name] {
			return fmt.Errorf("duplicate camera name %q", cam.Name)
		}
		seen["cam:"+cam.Name] = true
	}
	for _, s := range c.TactileSensors {
		if seen["tac:"+s.Name] {
			return fmt.Errorf("duplicate tactile sensor name %q", s.Name)
		}
		seen["tac:"+s.Name] = true
	}
	return nil
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file and applies
// environment overrides on top.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if cfg.CalibrationDir == "" {
		cfg.CalibrationDir = "calibration"
	}
	return &cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
