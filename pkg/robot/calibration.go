package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// ArmRole distinguishes the hand-driven leader from the commanded follower.
type ArmRole string

const (
	RoleLeader   ArmRole = "leader"
	RoleFollower ArmRole = "follower"
)

// MotorCalibration holds calibration data for a single motor.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// CalibrationRecord holds calibration data for all motors of one arm, keyed
// by motor name. Beyond round-tripping through SetCalibration its semantics
// belong to the bus driver.
type CalibrationRecord map[string]MotorCalibration

// ArmID resolves the per-arm identity used for calibration file names.
func ArmID(name string, role ArmRole) string {
	return fmt.Sprintf("%s_%s", name, role)
}

// LoadCalibration loads a calibration record from a JSON file.
func LoadCalibration(path string) (CalibrationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}
	var cal CalibrationRecord
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}
	return cal, nil
}

// Save writes the record to path, creating parent directories as needed.
func (c CalibrationRecord) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Calibrator produces a calibration record for one arm. Implementations are
// interactive or robot-specific routines supplied by the integrator; after
// Calibrate returns, reads on the arm must be expressed in the canonical
// human-interpretable ranges (degrees in [-180,180] for rotary joints,
// [0,100] for linear grippers).
type Calibrator interface {
	Calibrate(ctx context.Context, arm MotorsBus, robotType RobotType, armName string, role ArmRole) (CalibrationRecord, error)
}

// CalibratorFunc adapts a function to the Calibrator interface.
type CalibratorFunc func(ctx context.Context, arm MotorsBus, robotType RobotType, armName string, role ArmRole) (CalibrationRecord, error)

func (f CalibratorFunc) Calibrate(ctx context.Context, arm MotorsBus, robotType RobotType, armName string, role ArmRole) (CalibrationRecord, error) {
	return f(ctx, arm, robotType, armName, role)
}

// activateCalibration loads or produces a calibration record for every arm,
// followers first, and applies it. After this all motors report in the
// canonical ranges.
func (m *Manipulator) activateCalibration(ctx context.Context) error {
	loadOrRun := func(arm namedBus, role ArmRole) error {
		id := ArmID(arm.name, role)
		path := filepath.Join(m.cfg.CalibrationDir, id+".json")

		cal, err := LoadCalibration(path)
		switch {
		case err == nil:
			// loaded verbatim
		case errors.Is(err, os.ErrNotExist):
			log.Printf("missing calibration file %q, running calibration for %s", path, id)
			calibrator := m.family.calibrator(m)
			if calibrator == nil {
				return fmt.Errorf("%w for arm %s: no calibrator installed", ErrCalibrationMissing, id)
			}
			cal, err = calibrator.Calibrate(ctx, arm.bus, m.cfg.Type, arm.name, role)
			if err != nil {
				return fmt.Errorf("calibrate arm %s: %w", id, err)
			}
			if err := cal.Save(path); err != nil {
				return fmt.Errorf("save calibration %q: %w", path, err)
			}
			log.Printf("calibration done, saved %q", path)
		default:
			return err
		}

		if err := arm.bus.SetCalibration(cal); err != nil {
			return fmt.Errorf("apply calibration to arm %s: %w", id, err)
		}
		return nil
	}

	for _, arm := range m.followers {
		if err := loadOrRun(arm, RoleFollower); err != nil {
			return err
		}
	}
	for _, arm := range m.leaders {
		if err := loadOrRun(arm, RoleLeader); err != nil {
			return err
		}
	}
	return nil
}
