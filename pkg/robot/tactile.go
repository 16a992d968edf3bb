package robot

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
)

// Marker grid dimensions for tac3d sensors: 400 markers, 3 coordinates.
const (
	tac3dMarkers = 400
	tac3dCoords  = 3
)

// TactilePayload is the variant payload returned by a tactile sensor read.
// Sensors populate the fields their variant defines and leave the rest nil;
// assembly degrades missing fields to zero-filled placeholders.
type TactilePayload struct {
	SerialNumber  string
	FrameIndex    int64
	SendTimestamp float64
	RecvTimestamp float64

	// tac3d marker data, 400x3 each.
	Positions     *mat.Dense
	Displacements *mat.Dense
	Forces        *mat.Dense

	// Resultant wrench, 3-vectors.
	ResultantForce  *mat.VecDense
	ResultantMoment *mat.VecDense

	// gelsight/digit tactile image.
	Image *Image
}

func tactileKey(typ SensorType, name, field string) string {
	return fmt.Sprintf("observation.tactile.%s.%s.%s", typ, name, field)
}

// denseValue flattens a float64 matrix into a value of the declared rows x
// cols shape. A nil or wrong-sized matrix degrades to zeros; a matrix with
// the right element count but wrong rank is reshaped.
func denseValue(name string, m *mat.Dense, rows, cols int) Value {
	if m == nil {
		return ZeroValue(Float64, rows, cols)
	}
	r, c := m.Dims()
	if r*c != rows*cols {
		log.Printf("tactile sensor %s: matrix has shape (%d,%d), want (%d,%d); substituting zeros", name, r, c, rows, cols)
		return ZeroValue(Float64, rows, cols)
	}
	out := make([]float64, 0, rows*cols)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return Value{Dtype: Float64, Shape: []int{rows, cols}, F64: out}
}

// vecValue copies a 3-vector, degrading nil or short vectors to zeros.
func vecValue(name string, v *mat.VecDense) Value {
	if v == nil || v.Len() < 3 {
		if v != nil {
			log.Printf("tactile sensor %s: resultant vector has length %d, want 3; substituting zeros", name, v.Len())
		}
		return ZeroValue(Float64, 3)
	}
	return Value{Dtype: Float64, Shape: []int{3}, F64: []float64{v.AtVec(0), v.AtVec(1), v.AtVec(2)}}
}

// imageValue copies an image into a value of the declared dimensions. An
// image with a matching element count is reshaped; anything else degrades
// to a zero image with a diagnostic.
func imageValue(name string, img *Image, h, w int) Value {
	if img == nil {
		return ZeroValue(Uint8, h, w, 3)
	}
	if len(img.Pix) != h*w*3 {
		log.Printf("tactile sensor %s: image has %d bytes, want %dx%dx3; substituting zeros", name, len(img.Pix), h, w)
		return ZeroValue(Uint8, h, w, 3)
	}
	if img.Height != h || img.Width != w || img.Channels != 3 {
		log.Printf("tactile sensor %s: image shape (%d,%d,%d) reshaped to (%d,%d,3)", name, img.Height, img.Width, img.Channels, h, w)
	}
	pix := make([]uint8, len(img.Pix))
	copy(pix, img.Pix)
	return Value{Dtype: Uint8, Shape: []int{h, w, 3}, U8: pix}
}

// normalizeTactile converts one raw payload into schema-complete
// observation entries for the sensor's variant. A nil payload (failed read)
// yields zero placeholders for every declared key, so the observation shape
// never depends on transient sensor health.
func normalizeTactile(cfg TactileConfig, p *TactilePayload, out Observation) {
	key := func(field string) string { return tactileKey(cfg.Type, cfg.Name, field) }

	if p == nil {
		out[key("sensor_sn")] = stringValue("")
		out[key("frame_index")] = scalarI64(0)
		out[key("send_timestamp")] = scalarF64(0)
		out[key("recv_timestamp")] = scalarF64(0)
	} else {
		send := p.SendTimestamp
		if send == 0 {
			send = p.RecvTimestamp
		}
		out[key("sensor_sn")] = stringValue(p.SerialNumber)
		out[key("frame_index")] = scalarI64(p.FrameIndex)
		out[key("send_timestamp")] = scalarF64(send)
		out[key("recv_timestamp")] = scalarF64(p.RecvTimestamp)
	}

	switch cfg.Type {
	case SensorTac3D:
		var positions, displacements, forces *mat.Dense
		var force, moment *mat.VecDense
		if p != nil {
			positions, displacements, forces = p.Positions, p.Displacements, p.Forces
			force, moment = p.ResultantForce, p.ResultantMoment
		}
		out[key("positions_3d")] = denseValue(cfg.Name, positions, tac3dMarkers, tac3dCoords)
		out[key("displacements_3d")] = denseValue(cfg.Name, displacements, tac3dMarkers, tac3dCoords)
		out[key("forces_3d")] = denseValue(cfg.Name, forces, tac3dMarkers, tac3dCoords)
		out[key("resultant_force")] = vecValue(cfg.Name, force)
		out[key("resultant_moment")] = vecValue(cfg.Name, moment)

	case SensorGelSight:
		h, w := cfg.imageDims()
		var img *Image
		if p != nil {
			img = p.Image
		}
		out[key("tactile_image")] = imageValue(cfg.Name, img, h, w)

	case SensorDigit:
		var img *Image
		if p != nil {
			img = p.Image
		}
		out[key("tactile_image")] = imageValue(cfg.Name, img, 240, 320)

	default:
		var force, moment *mat.VecDense
		if p != nil {
			force, moment = p.ResultantForce, p.ResultantMoment
		}
		out[key("resultant_force")] = vecValue(cfg.Name, force)
		out[key("resultant_moment")] = vecValue(cfg.Name, moment)
	}
}
