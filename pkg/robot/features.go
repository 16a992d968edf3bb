package robot

import "fmt"

// Feature describes one observation/action channel: element type, shape and
// ordered axis names. The full mapping is the contract handed to the
// downstream dataset recorder.
type Feature struct {
	Dtype Dtype    `json:"dtype"`
	Shape []int    `json:"shape"`
	Names []string `json:"names,omitempty"`
}

// Features derives the complete static feature mapping from configuration
// alone, without touching hardware. Motor ordering follows the follower arm
// order fixed by the config.
func Features(cfg Config) map[string]Feature {
	features := map[string]Feature{}

	var motorNames []string
	for _, arm := range cfg.FollowerArms {
		motorNames = append(motorNames, arm.MotorNames()...)
	}
	features["action"] = Feature{
		Dtype: Float32,
		Shape: []int{len(motorNames)},
		Names: motorNames,
	}
	features["observation.state"] = Feature{
		Dtype: Float32,
		Shape: []int{len(motorNames)},
		Names: motorNames,
	}

	for _, cam := range cfg.Cameras {
		features[fmt.Sprintf("observation.images.%s", cam.Name)] = Feature{
			Dtype: Video,
			Shape: []int{cam.Height, cam.Width, 3},
			Names: []string{"height", "width", "channels"},
		}
	}

	for _, sensor := range cfg.TactileSensors {
		for key, ft := range tactileFeatures(sensor) {
			features[key] = ft
		}
	}

	return features
}

// tactileFeatures returns the per-sensor schema: four metadata channels for
// every variant plus the variant-specific data channels.
func tactileFeatures(cfg TactileConfig) map[string]Feature {
	key := func(field string) string { return tactileKey(cfg.Type, cfg.Name, field) }

	ft := map[string]Feature{
		key("sensor_sn"):      {Dtype: String, Shape: []int{1}},
		key("frame_index"):    {Dtype: Int64, Shape: []int{1}},
		key("send_timestamp"): {Dtype: Float64, Shape: []int{1}},
		key("recv_timestamp"): {Dtype: Float64, Shape: []int{1}},
	}

	markerAxes := []string{"marker_id", "coordinate"}
	wrenchAxes := []string{"x", "y", "z"}
	imageAxes := []string{"height", "width", "channel"}

	switch cfg.Type {
	case SensorTac3D:
		ft[key("positions_3d")] = Feature{Dtype: Float64, Shape: []int{tac3dMarkers, tac3dCoords}, Names: markerAxes}
		ft[key("displacements_3d")] = Feature{Dtype: Float64, Shape: []int{tac3dMarkers, tac3dCoords}, Names: markerAxes}
		ft[key("forces_3d")] = Feature{Dtype: Float64, Shape: []int{tac3dMarkers, tac3dCoords}, Names: markerAxes}
		ft[key("resultant_force")] = Feature{Dtype: Float64, Shape: []int{3}, Names: wrenchAxes}
		ft[key("resultant_moment")] = Feature{Dtype: Float64, Shape: []int{3}, Names: wrenchAxes}
	case SensorGelSight:
		h, w := cfg.imageDims()
		ft[key("tactile_image")] = Feature{Dtype: Uint8, Shape: []int{h, w, 3}, Names: imageAxes}
	case SensorDigit:
		// Image only: digit sensors report no force data.
		ft[key("tactile_image")] = Feature{Dtype: Uint8, Shape: []int{240, 320, 3}, Names: imageAxes}
	default:
		ft[key("resultant_force")] = Feature{Dtype: Float64, Shape: []int{3}, Names: wrenchAxes}
		ft[key("resultant_moment")] = Feature{Dtype: Float64, Shape: []int{3}, Names: wrenchAxes}
	}

	return ft
}
