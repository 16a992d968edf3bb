package robot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFeaturesActionAndStateFollowFollowerOrder(t *testing.T) {
	cfg := Config{
		Type: RobotSO101,
		LeaderArms: []ArmConfig{
			{Name: "main", Motors: testMotors("a", "b", "c")},
		},
		FollowerArms: []ArmConfig{
			{Name: "left", Motors: testMotors("shoulder_pan", "gripper")},
			{Name: "right", Motors: testMotors("shoulder_pan", "gripper")},
		},
	}

	features := Features(cfg)

	want := Feature{
		Dtype: Float32,
		Shape: []int{4},
		Names: []string{"shoulder_pan", "gripper", "shoulder_pan", "gripper"},
	}
	if diff := cmp.Diff(want, features["action"]); diff != "" {
		t.Errorf("action feature mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, features["observation.state"]); diff != "" {
		t.Errorf("observation.state feature mismatch (-want +got):\n%s", diff)
	}
}

func TestFeaturesCameras(t *testing.T) {
	cfg := Config{
		Type:    RobotSO101,
		Cameras: []CameraConfig{{Name: "top", Width: 640, Height: 480}},
	}

	ft := Features(cfg)["observation.images.top"]
	assert.Equal(t, Video, ft.Dtype)
	assert.Equal(t, []int{480, 640, 3}, ft.Shape)
}

func TestFeaturesDigitFingertipExactKeys(t *testing.T) {
	cfg := Config{
		Type: RobotSO101,
		TactileSensors: []TactileConfig{
			{Name: "thumb", Type: SensorDigit},
		},
	}

	features := Features(cfg)

	// Digit sensors produce image and metadata only; no force channels.
	wantKeys := []string{
		"action",
		"observation.state",
		"observation.tactile.digit.thumb.sensor_sn",
		"observation.tactile.digit.thumb.frame_index",
		"observation.tactile.digit.thumb.send_timestamp",
		"observation.tactile.digit.thumb.recv_timestamp",
		"observation.tactile.digit.thumb.tactile_image",
	}
	assert.Len(t, features, len(wantKeys))
	for _, key := range wantKeys {
		assert.Contains(t, features, key)
	}
	assert.Equal(t, []int{240, 320, 3}, features["observation.tactile.digit.thumb.tactile_image"].Shape)
}

func TestFeaturesTac3D(t *testing.T) {
	cfg := Config{
		Type: RobotSO101,
		TactileSensors: []TactileConfig{
			{Name: "tip", Type: SensorTac3D},
		},
	}

	features := Features(cfg)
	assert.Equal(t, []int{400, 3}, features["observation.tactile.tac3d.tip.positions_3d"].Shape)
	assert.Equal(t, []int{400, 3}, features["observation.tactile.tac3d.tip.displacements_3d"].Shape)
	assert.Equal(t, []int{400, 3}, features["observation.tactile.tac3d.tip.forces_3d"].Shape)
	assert.Equal(t, []int{3}, features["observation.tactile.tac3d.tip.resultant_force"].Shape)
	assert.Equal(t, []int{3}, features["observation.tactile.tac3d.tip.resultant_moment"].Shape)
}

func TestFeaturesGelSightCustomDims(t *testing.T) {
	cfg := Config{
		Type: RobotSO101,
		TactileSensors: []TactileConfig{
			{Name: "pad", Type: SensorGelSight, ImageHeight: 120, ImageWidth: 160},
			{Name: "pad2", Type: SensorGelSight},
		},
	}

	features := Features(cfg)
	assert.Equal(t, []int{120, 160, 3}, features["observation.tactile.gelsight.pad.tactile_image"].Shape)
	assert.Equal(t, []int{240, 320, 3}, features["observation.tactile.gelsight.pad2.tactile_image"].Shape)
}
