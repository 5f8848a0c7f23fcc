package models

import "math"

// ConfidenceModelWeights is a remotely trained linear calibration model.
// Intercept plus per-feature weights over the canonical FeatureVector.
type ConfidenceModelWeights struct {
	Version   string             `json:"version"`
	Intercept float64            `json:"intercept"`
	Features  map[string]float64 `json:"features"`
}

// Valid reports whether the payload has a usable shape: non-empty version,
// finite intercept, and a map of finite feature weights. Malformed
// payloads are rejected before caching, never partially applied.
func (w *ConfidenceModelWeights) Valid() bool {
	if w == nil || w.Version == "" {
		return false
	}
	if math.IsNaN(w.Intercept) || math.IsInf(w.Intercept, 0) {
		return false
	}
	if w.Features == nil {
		return false
	}
	for _, v := range w.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
