package robot

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CaptureObservation assembles one multi-modal observation frame: follower
// state, camera images and tactile data. Per-device read failures degrade
// to schema-complete zero placeholders and never abort the batch.
func (m *Manipulator) CaptureObservation(ctx context.Context) (Observation, error) {
	if !m.Connected() {
		return nil, ErrNotConnected
	}
	return m.captureObservation(ctx), nil
}

func (m *Manipulator) captureObservation(ctx context.Context) Observation {
	// Tactile sensors are the slowest and most failure-prone channel, so
	// their reads start first and run concurrently with the arm/camera
	// stage below.
	tactileDone := m.startTactileStage(ctx)

	obs := Observation{}

	var state []float64
	for _, arm := range m.followers {
		start := time.Now()
		pos, err := arm.bus.Read(ctx, "Present_Position")
		if err != nil {
			log.Printf("read follower arm %q during capture: %v", arm.name, err)
			pos = make([]float64, len(arm.bus.MotorNames()))
		}
		state = append(state, pos...)
		m.setDiag(fmt.Sprintf("read_follower_%s_pos_dt_s", arm.name), time.Since(start).Seconds())
	}
	obs["observation.state"] = float32Value(state)

	for _, cam := range m.cameras {
		start := time.Now()
		img, err := cam.cam.AsyncRead()
		if err != nil {
			log.Printf("read camera %q: %v", cam.name, err)
			img = ZeroImage(cam.cfg.Height, cam.cfg.Width, 3)
		}
		m.setDiag(fmt.Sprintf("read_camera_%s_dt_s", cam.name), cam.cam.Latency().Seconds())
		m.setDiag(fmt.Sprintf("async_read_camera_%s_dt_s", cam.name), time.Since(start).Seconds())
		obs[fmt.Sprintf("observation.images.%s", cam.name)] = Value{
			Dtype: Uint8,
			Shape: []int{img.Height, img.Width, img.Channels},
			U8:    img.Pix,
		}
	}

	payloads := tactileDone()
	for i, s := range m.tactile {
		normalizeTactile(s.cfg, payloads[i], obs)
	}

	// Sweep latched critical errors into the diagnostics so the caller can
	// decide whether to halt.
	for _, s := range m.tactile {
		if s.sensor.HasCriticalError() {
			msg := s.sensor.ErrorStatus()["error_message"]
			if msg == "" {
				msg = "unknown critical error"
			}
			log.Printf("tactile sensor %q reports critical error: %s", s.name, msg)
			m.setDiag(fmt.Sprintf("tactile_sensor_%s_critical_error", s.name), true)
			m.setDiag(fmt.Sprintf("tactile_sensor_%s_error_message", s.name), msg)
		}
	}

	return obs
}

// startTactileStage launches one worker per sensor and returns a collector
// that blocks until every read finishes, fails, or exceeds the configured
// timeout. Results are keyed by the submitting sensor's registry slot, so
// attribution never depends on completion order. A failed or late read
// yields a nil payload; siblings are never cancelled on a single failure.
func (m *Manipulator) startTactileStage(ctx context.Context) func() []*TactilePayload {
	start := time.Now()

	type result struct {
		idx     int
		payload *TactilePayload
		err     error
	}

	// Buffer for every sensor so late workers never block after a timeout
	// abandons them.
	results := make(chan result, max(len(m.tactile), 1))
	for i, s := range m.tactile {
		go func(idx int, s namedSensor) {
			payload, err := s.sensor.Read(ctx)
			results <- result{idx: idx, payload: payload, err: err}
		}(i, s)
	}

	return func() []*TactilePayload {
		payloads := make([]*TactilePayload, len(m.tactile))
		received := make([]bool, len(m.tactile))

		var deadline <-chan time.Time
		if m.cfg.TactileReadTimeout > 0 {
			timer := time.NewTimer(m.cfg.TactileReadTimeout)
			defer timer.Stop()
			deadline = timer.C
		}

		pending := len(m.tactile)
	collect:
		for pending > 0 {
			select {
			case r := <-results:
				pending--
				received[r.idx] = true
				if r.err != nil {
					log.Printf("error reading tactile sensor %q: %v", m.tactile[r.idx].name, r.err)
					continue
				}
				payloads[r.idx] = r.payload
			case <-deadline:
				for i, ok := range received {
					if !ok {
						log.Printf("tactile sensor %q read timed out after %s", m.tactile[i].name, m.cfg.TactileReadTimeout)
					}
				}
				break collect
			}
		}

		m.setDiag("read_all_tactile_parallel_dt_s", time.Since(start).Seconds())
		return payloads
	}
}
