package detect

import "vigil/core"

// Scorer adjusts candidate confidence before materialization. This is the
// hook for model-based scoring; the engine ships with rule-calibrated
// confidences only and the default scorer changes nothing.
type Scorer interface {
	Score(cand *core.Candidate)
}

// NopScorer leaves candidates untouched
type NopScorer struct{}

// Score is a no-op
func (NopScorer) Score(*core.Candidate) {}
