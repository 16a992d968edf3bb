package robot

// Dtype identifies the element type of a feature or observation value.
type Dtype string

const (
	Float32 Dtype = "float32"
	Float64 Dtype = "float64"
	Int64   Dtype = "int64"
	Uint8   Dtype = "uint8"
	String  Dtype = "string"
	// Video marks camera frames handed to a downstream video encoder.
	Video Dtype = "video"
)

// Image is a height x width x channels uint8 buffer in row-major order.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// ZeroImage returns a black image of the given dimensions.
func ZeroImage(h, w, c int) Image {
	return Image{Height: h, Width: w, Channels: c, Pix: make([]uint8, h*w*c)}
}

// Value is one observation channel: a typed buffer plus its shape. Exactly
// one of the buffers matching Dtype is populated; the others stay nil.
type Value struct {
	Dtype Dtype
	Shape []int
	F32   []float32
	F64   []float64
	I64   []int64
	U8    []uint8
	Str   string
}

func numElems(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// ZeroValue returns a schema-complete placeholder of the declared dtype and
// shape: zero-filled buffers, or the empty string for string values.
func ZeroValue(dtype Dtype, shape ...int) Value {
	v := Value{Dtype: dtype, Shape: shape}
	switch dtype {
	case Float32:
		v.F32 = make([]float32, numElems(shape))
	case Float64:
		v.F64 = make([]float64, numElems(shape))
	case Int64:
		v.I64 = make([]int64, numElems(shape))
	case Uint8, Video:
		v.U8 = make([]uint8, numElems(shape))
	case String:
		// empty string, shape kept for schema completeness
	}
	return v
}

func float32Value(data []float64) Value {
	out := make([]float32, len(data))
	for i, f := range data {
		out[i] = float32(f)
	}
	return Value{Dtype: Float32, Shape: []int{len(out)}, F32: out}
}

func scalarI64(n int64) Value {
	return Value{Dtype: Int64, Shape: []int{1}, I64: []int64{n}}
}

func scalarF64(f float64) Value {
	return Value{Dtype: Float64, Shape: []int{1}, F64: []float64{f}}
}

func stringValue(s string) Value {
	return Value{Dtype: String, Shape: []int{1}, Str: s}
}

// Observation is one multi-modal observation frame keyed by dotted feature
// names (observation.state, observation.images.<name>,
// observation.tactile.<type>.<name>.<field>). Built fresh each capture,
// never retained by the controller.
type Observation map[string]Value
