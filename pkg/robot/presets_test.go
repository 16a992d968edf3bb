package robot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// presetRig builds a connected manipulator of the given type with distinct
// leader and follower stub buses.
func presetRig(t *testing.T, robotType RobotType, motors []string, mutate func(cfg *Config)) (*stubBus, *stubBus) {
	t.Helper()

	leader := newStubBus(motors, nil)
	follower := newStubBus(motors, nil)

	cfg := Config{
		Type:           robotType,
		CalibrationDir: t.TempDir(),
		LeaderArms:     []ArmConfig{{Name: "main", Port: "/dev/leader", Motors: testMotors(motors...)}},
		FollowerArms:   []ArmConfig{{Name: "main", Port: "/dev/follower", Motors: testMotors(motors...)}},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := New(cfg,
		WithDeviceFactory(DeviceFactory{
			NewMotorsBus: func(c ArmConfig) (MotorsBus, error) {
				if c.Port == "/dev/leader" {
					return leader, nil
				}
				return follower, nil
			},
		}),
		WithRotaryCalibrator(fixedCalibrator(flatCalibration(motors...))),
		WithManualCalibrator(fixedCalibrator(flatCalibration(motors...))),
		WithoutSignalHandler(),
	)
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { m.Disconnect() })
	return leader, follower
}

func TestKochPresetFollowerModes(t *testing.T) {
	motors := []string{"shoulder_pan", "elbow_flex", "gripper"}
	leader, follower := presetRig(t, RobotKoch, motors, nil)

	modes := follower.writesTo("Operating_Mode")
	require.Len(t, modes, 2)
	// Extended position mode everywhere but the gripper.
	assert.Equal(t, []float64{4}, modes[0].values)
	assert.Equal(t, []string{"shoulder_pan", "elbow_flex"}, modes[0].motors)
	// Current-controlled position mode on the gripper.
	assert.Equal(t, []float64{5}, modes[1].values)
	assert.Equal(t, []string{"gripper"}, modes[1].motors)

	// Elbow PID tuning on followers only.
	p := follower.writesTo("Position_P_Gain")
	require.Len(t, p, 1)
	assert.Equal(t, []float64{1500}, p[0].values)
	assert.Equal(t, []string{"elbow_flex"}, p[0].motors)
	assert.Len(t, follower.writesTo("Position_I_Gain"), 1)
	d := follower.writesTo("Position_D_Gain")
	require.Len(t, d, 1)
	assert.Equal(t, []float64{600}, d[0].values)

	// Without a gripper-open degree the leader is left untouched.
	assert.Empty(t, leader.writes)
}

func TestKochPresetGripperTrigger(t *testing.T) {
	motors := []string{"shoulder_pan", "elbow_flex", "gripper"}
	degree := 35.156
	leader, _ := presetRig(t, RobotKoch, motors, func(cfg *Config) {
		cfg.GripperOpenDegree = &degree
	})

	// The leader gripper holds torque at the open angle, turning it into a
	// spring-loaded trigger.
	torque := leader.writesTo("Torque_Enable")
	require.Len(t, torque, 1)
	assert.Equal(t, []float64{1}, torque[0].values)
	assert.Equal(t, []string{"gripper"}, torque[0].motors)

	goals := leader.writesTo("Goal_Position")
	require.Len(t, goals, 1)
	assert.Equal(t, []float64{degree}, goals[0].values)
	assert.Equal(t, []string{"gripper"}, goals[0].motors)
}

func TestAlohaPresetShadowLinksAndLimits(t *testing.T) {
	motors := []string{"shoulder", "shoulder_shadow", "elbow", "elbow_shadow", "gripper"}
	leader, follower := presetRig(t, RobotAloha, motors, nil)

	// Shadow motors get the primary's ID as secondary ID on every arm.
	for _, bus := range []*stubBus{leader, follower} {
		shadows := bus.writesTo("Secondary_ID")
		require.Len(t, shadows, 2)
		assert.Equal(t, []string{"shoulder_shadow"}, shadows[0].motors)
		assert.Equal(t, []string{"elbow_shadow"}, shadows[1].motors)
	}

	// Velocity ceiling and modes on followers only.
	vel := follower.writesTo("Velocity_Limit")
	require.Len(t, vel, 1)
	assert.Equal(t, []float64{131}, vel[0].values)
	assert.Empty(t, vel[0].motors)
	assert.Empty(t, leader.writesTo("Velocity_Limit"))

	modes := follower.writesTo("Operating_Mode")
	require.Len(t, modes, 2)
	assert.Equal(t, []string{"shoulder", "shoulder_shadow", "elbow", "elbow_shadow"}, modes[0].motors)
	assert.Equal(t, []string{"gripper"}, modes[1].motors)
}

func TestSO100PresetWriteSequence(t *testing.T) {
	motors := []string{"shoulder_pan", "gripper"}
	leader, follower := presetRig(t, RobotSO100, motors, nil)

	want := []writeOp{
		{register: "Mode", values: []float64{0}},
		{register: "P_Coefficient", values: []float64{16}},
		{register: "I_Coefficient", values: []float64{0}},
		{register: "D_Coefficient", values: []float64{32}},
		{register: "Lock", values: []float64{0}},
		{register: "Maximum_Acceleration", values: []float64{254}},
		{register: "Acceleration", values: []float64{254}},
	}
	require.Len(t, follower.writes, len(want))
	for i, w := range want {
		assert.Equal(t, w.register, follower.writes[i].register, "write %d", i)
		assert.Equal(t, w.values, follower.writes[i].values, "write %d", i)
		assert.Empty(t, follower.writes[i].motors, "write %d", i)
	}

	assert.Empty(t, leader.writes)
}

func TestSO101HasNoPreset(t *testing.T) {
	motors := []string{"shoulder_pan", "gripper"}
	leader, follower := presetRig(t, RobotSO101, motors, nil)
	assert.Empty(t, leader.writes)
	assert.Empty(t, follower.writes)
}

func TestFamilyForRejectsUnknownType(t *testing.T) {
	_, err := familyFor("cyberdyne")
	assert.ErrorIs(t, err, ErrUnknownRobotType)
}
