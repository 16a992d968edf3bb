package robot

import (
	"encoding/json"
	"log"
	"math"
)

// clampTolerance is the floating tolerance below which a corrected goal is
// not considered a clamp.
const clampTolerance = 1e-6

// RelativeTarget is the maximum allowed magnitude of goal - present per
// joint. A single element broadcasts over all joints; otherwise element i
// bounds joint i.
type RelativeTarget []float64

// UnmarshalJSON accepts either a scalar or an array of per-joint bounds.
func (r *RelativeTarget) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*r = RelativeTarget{scalar}
		return nil
	}
	var many []float64
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*r = RelativeTarget(many)
	return nil
}

// MarshalJSON writes a scalar back as a scalar.
func (r RelativeTarget) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]float64(r))
}

func (r RelativeTarget) bound(i int) float64 {
	if len(r) == 0 {
		return math.Inf(1)
	}
	if len(r) == 1 {
		return r[0]
	}
	if i < len(r) {
		return r[i]
	}
	return r[len(r)-1]
}

// ClampGoal caps the relative motion command goal - present element-wise to
// [-bound, +bound] and re-adds it to present. It never mutates its inputs
// and returns goal values unchanged when they are already within the bound.
// When the correction exceeds the floating tolerance an advisory warning is
// logged with the requested and clamped deltas.
func ClampGoal(goal, present []float64, bound RelativeTarget) []float64 {
	safe := make([]float64, len(goal))
	var clamped bool
	requested := make([]float64, len(goal))
	applied := make([]float64, len(goal))
	for i, g := range goal {
		diff := g - present[i]
		requested[i] = diff
		b := bound.bound(i)
		safeDiff := math.Min(diff, b)
		safeDiff = math.Max(safeDiff, -b)
		applied[i] = safeDiff
		safe[i] = present[i] + safeDiff
		if math.Abs(safeDiff-diff) > clampTolerance {
			clamped = true
		}
	}
	if clamped {
		log.Printf("relative goal position clamped to be safe: requested delta %v, clamped delta %v", requested, applied)
	}
	return safe
}
