package robot

import (
	"context"
	"fmt"
	"log"
	"slices"
)

// family bundles the per-robot-type strategies: which calibrator drives a
// missing calibration and which one-time register preset runs after it. The
// set of families is closed; selection happens once, at construction.
type family struct {
	calibrator func(m *Manipulator) Calibrator
	preset     func(m *Manipulator, ctx context.Context) error
}

func familyFor(t RobotType) (family, error) {
	switch t {
	case RobotKoch, RobotKochBimanual:
		return family{
			calibrator: func(m *Manipulator) Calibrator { return m.rotaryCalibrator },
			preset:     (*Manipulator).setKochPreset,
		}, nil
	case RobotAloha:
		return family{
			calibrator: func(m *Manipulator) Calibrator { return m.rotaryCalibrator },
			preset:     (*Manipulator).setAlohaPreset,
		}, nil
	case RobotSO100:
		return family{
			calibrator: func(m *Manipulator) Calibrator { return m.manualCalibrator },
			preset:     (*Manipulator).setSO100Preset,
		}, nil
	case RobotSO101, RobotMoss, RobotLeKiwi:
		return family{
			calibrator: func(m *Manipulator) Calibrator { return m.manualCalibrator },
		}, nil
	}
	return family{}, fmt.Errorf("%w: %q", ErrUnknownRobotType, t)
}

// applyPreset runs the family's one-time register writes, if any. Every
// write goes straight to the bus with no verification read-back; driver
// errors surface as-is.
func (m *Manipulator) applyPreset(ctx context.Context) error {
	if m.family.preset == nil {
		return nil
	}
	return m.family.preset(m, ctx)
}

func motorsExceptGripper(bus MotorsBus) []string {
	var names []string
	for _, name := range bus.MotorNames() {
		if name != "gripper" {
			names = append(names, name)
		}
	}
	return names
}

// setKochPreset configures Koch-family arms: extended position mode
// everywhere but the gripper (the servos must rotate past 360 degrees),
// current-limited position mode on the gripper, tuned elbow PID on
// followers, and optionally the leader gripper armed as a spring-loaded
// trigger at GripperOpenDegree.
func (m *Manipulator) setKochPreset(ctx context.Context) error {
	setOperatingMode := func(arm namedBus) error {
		torque, err := arm.bus.Read(ctx, "Torque_Enable")
		if err != nil {
			return fmt.Errorf("read torque on %q: %w", arm.name, err)
		}
		for _, v := range torque {
			if v != 0 {
				return fmt.Errorf("arm %q: torque must be disabled on all motors before applying preset", arm.name)
			}
		}

		// 4 is extended position mode, 5 is current-controlled position
		// mode on the xl330 series.
		if names := motorsExceptGripper(arm.bus); len(names) > 0 {
			if err := arm.bus.Write(ctx, "Operating_Mode", []float64{4}, names...); err != nil {
				return err
			}
		}
		if slices.Contains(arm.bus.MotorNames(), "gripper") {
			if err := arm.bus.Write(ctx, "Operating_Mode", []float64{5}, "gripper"); err != nil {
				return err
			}
		}
		return nil
	}

	for _, arm := range m.followers {
		if err := setOperatingMode(arm); err != nil {
			return err
		}

		// Tighter elbow PID closes the gap between recorded states and
		// actions.
		if err := arm.bus.Write(ctx, "Position_P_Gain", []float64{1500}, "elbow_flex"); err != nil {
			return err
		}
		if err := arm.bus.Write(ctx, "Position_I_Gain", []float64{0}, "elbow_flex"); err != nil {
			return err
		}
		if err := arm.bus.Write(ctx, "Position_D_Gain", []float64{600}, "elbow_flex"); err != nil {
			return err
		}
	}

	if m.cfg.GripperOpenDegree != nil {
		for _, arm := range m.leaders {
			if err := setOperatingMode(arm); err != nil {
				return err
			}
			// Holding torque on the leader gripper turns it into a
			// trigger: pressing it moves the follower gripper, releasing
			// springs it back to the open angle.
			if err := arm.bus.Write(ctx, "Torque_Enable", []float64{1}, "gripper"); err != nil {
				return err
			}
			if err := arm.bus.Write(ctx, "Goal_Position", []float64{*m.cfg.GripperOpenDegree}, "gripper"); err != nil {
				return err
			}
		}
	}
	return nil
}

// setAlohaPreset links shadow motors to their primary joint and mirrors the
// Koch mode settings on followers. Shoulder and elbow carry two motors
// each; giving the shadow the primary's ID as secondary ID makes the pair
// track together so a single-motor command cannot twist the joint apart.
func (m *Manipulator) setAlohaPreset(ctx context.Context) error {
	setShadow := func(arm namedBus, primary, shadow string) error {
		if !slices.Contains(arm.bus.MotorNames(), shadow) {
			return nil
		}
		id, err := arm.bus.Read(ctx, "ID", primary)
		if err != nil {
			return fmt.Errorf("read %s id on %q: %w", primary, arm.name, err)
		}
		return arm.bus.Write(ctx, "Secondary_ID", id, shadow)
	}

	allArms := append(append([]namedBus{}, m.followers...), m.leaders...)
	for _, arm := range allArms {
		if err := setShadow(arm, "shoulder", "shoulder_shadow"); err != nil {
			return err
		}
		if err := setShadow(arm, "elbow", "elbow_shadow"); err != nil {
			return err
		}
	}

	for _, arm := range m.followers {
		// Velocity ceiling of 131 as advised by the arm vendor.
		if err := arm.bus.Write(ctx, "Velocity_Limit", []float64{131}); err != nil {
			return err
		}

		if names := motorsExceptGripper(arm.bus); len(names) > 0 {
			if err := arm.bus.Write(ctx, "Operating_Mode", []float64{4}, names...); err != nil {
				return err
			}
		}
		if slices.Contains(arm.bus.MotorNames(), "gripper") {
			if err := arm.bus.Write(ctx, "Operating_Mode", []float64{5}, "gripper"); err != nil {
				return err
			}
		}
		// The leader gripper servo has no current-controlled position
		// mode, so no trigger setup here.
	}

	if m.cfg.GripperOpenDegree != nil {
		log.Printf("gripper_open_degree is set to %v, but none is expected for this robot type", *m.cfg.GripperOpenDegree)
	}
	return nil
}

// setSO100Preset puts followers in position-control mode with softened P
// gain and fast acceleration. The Lock release write commits
// Maximum_Acceleration to non-volatile storage so it survives a reboot.
func (m *Manipulator) setSO100Preset(ctx context.Context) error {
	for _, arm := range m.followers {
		writes := []struct {
			register string
			value    float64
		}{
			{"Mode", 0},
			{"P_Coefficient", 16},
			{"I_Coefficient", 0},
			{"D_Coefficient", 32},
			{"Lock", 0},
			{"Maximum_Acceleration", 254},
			{"Acceleration", 254},
		}
		for _, w := range writes {
			if err := arm.bus.Write(ctx, w.register, []float64{w.value}); err != nil {
				return fmt.Errorf("preset write %s on %q: %w", w.register, arm.name, err)
			}
		}
	}
	return nil
}
