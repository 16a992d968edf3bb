package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNormalizeTactileTac3D(t *testing.T) {
	cfg := TactileConfig{Name: "tip", Type: SensorTac3D}
	positions := mat.NewDense(tac3dMarkers, tac3dCoords, nil)
	positions.Set(0, 0, 1.5)
	positions.Set(399, 2, -2.5)

	p := &TactilePayload{
		SerialNumber:   "AD2-0040R",
		FrameIndex:     7,
		SendTimestamp:  100.5,
		RecvTimestamp:  100.6,
		Positions:      positions,
		ResultantForce: mat.NewVecDense(3, []float64{0, 0, -1.2}),
	}

	obs := Observation{}
	normalizeTactile(cfg, p, obs)

	assert.Equal(t, "AD2-0040R", obs["observation.tactile.tac3d.tip.sensor_sn"].Str)
	assert.Equal(t, []int64{7}, obs["observation.tactile.tac3d.tip.frame_index"].I64)
	assert.Equal(t, []float64{100.5}, obs["observation.tactile.tac3d.tip.send_timestamp"].F64)

	pos := obs["observation.tactile.tac3d.tip.positions_3d"]
	assert.Equal(t, []int{tac3dMarkers, tac3dCoords}, pos.Shape)
	assert.Equal(t, 1.5, pos.F64[0])
	assert.Equal(t, -2.5, pos.F64[len(pos.F64)-1])

	// Missing displacement and force matrices degrade to zeros.
	disp := obs["observation.tactile.tac3d.tip.displacements_3d"]
	assert.Equal(t, make([]float64, tac3dMarkers*tac3dCoords), disp.F64)
	assert.Equal(t, []float64{0, 0, -1.2}, obs["observation.tactile.tac3d.tip.resultant_force"].F64)
	assert.Equal(t, []float64{0, 0, 0}, obs["observation.tactile.tac3d.tip.resultant_moment"].F64)
}

func TestNormalizeTactileSendTimestampFallsBackToRecv(t *testing.T) {
	cfg := TactileConfig{Name: "tip", Type: SensorUnknown}
	p := &TactilePayload{RecvTimestamp: 42.5}

	obs := Observation{}
	normalizeTactile(cfg, p, obs)

	assert.Equal(t, []float64{42.5}, obs["observation.tactile.unknown.tip.send_timestamp"].F64)
	assert.Equal(t, []float64{42.5}, obs["observation.tactile.unknown.tip.recv_timestamp"].F64)
}

func TestNormalizeTactileGelSightImage(t *testing.T) {
	cfg := TactileConfig{Name: "pad", Type: SensorGelSight, ImageHeight: 2, ImageWidth: 2}
	img := Image{Height: 2, Width: 2, Channels: 3, Pix: []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}
	p := &TactilePayload{Image: &img}

	obs := Observation{}
	normalizeTactile(cfg, p, obs)

	v := obs["observation.tactile.gelsight.pad.tactile_image"]
	assert.Equal(t, Uint8, v.Dtype)
	assert.Equal(t, []int{2, 2, 3}, v.Shape)
	assert.Equal(t, img.Pix, v.U8)
}

func TestNormalizeTactileWrongSizeImageDegrades(t *testing.T) {
	cfg := TactileConfig{Name: "pad", Type: SensorGelSight, ImageHeight: 2, ImageWidth: 2}
	p := &TactilePayload{Image: &Image{Height: 1, Width: 1, Channels: 3, Pix: []uint8{1, 2, 3}}}

	obs := Observation{}
	normalizeTactile(cfg, p, obs)

	v := obs["observation.tactile.gelsight.pad.tactile_image"]
	assert.Equal(t, make([]uint8, 2*2*3), v.U8)
}

func TestNormalizeTactileDigitFixedDims(t *testing.T) {
	// Digit sensors ignore configured image dims and report no force keys.
	cfg := TactileConfig{Name: "thumb", Type: SensorDigit, ImageHeight: 99, ImageWidth: 99}

	obs := Observation{}
	normalizeTactile(cfg, nil, obs)

	v := obs["observation.tactile.digit.thumb.tactile_image"]
	assert.Equal(t, []int{240, 320, 3}, v.Shape)
	assert.NotContains(t, obs, "observation.tactile.digit.thumb.resultant_force")
}

func TestNormalizeTactileNilPayloadIsSchemaComplete(t *testing.T) {
	cfg := TactileConfig{Name: "tip", Type: SensorTac3D}

	obs := Observation{}
	normalizeTactile(cfg, nil, obs)

	for key, ft := range tactileFeatures(cfg) {
		v, ok := obs[key]
		assert.True(t, ok, "missing key %s", key)
		assert.Equal(t, ft.Shape, v.Shape, "shape mismatch for %s", key)
	}
}
