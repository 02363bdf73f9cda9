package pipeline

// BranchPredictorStats holds statistics for the branch predictor.
type BranchPredictorStats struct {
	// Predictions is the total number of branch predictions made.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
	// BTBHits is the number of target-table hits.
	BTBHits uint64
	// BTBMisses is the number of target-table misses.
	BTBMisses uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	resolved := s.Correct + s.Mispredictions
	if resolved == 0 {
		return 0
	}
	return float64(s.Correct) / float64(resolved) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s BranchPredictorStats) MispredictionRate() float64 {
	resolved := s.Correct + s.Mispredictions
	if resolved == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(resolved) * 100
}

// BTBHitRate returns the target-table hit rate as a percentage.
func (s BranchPredictorStats) BTBHitRate() float64 {
	total := s.BTBHits + s.BTBMisses
	if total == 0 {
		return 0
	}
	return float64(s.BTBHits) / float64(total) * 100
}

// Prediction represents a branch prediction result.
type Prediction struct {
	// Taken indicates whether the branch is predicted to be taken.
	Taken bool
	// Target is the predicted target address (if known).
	Target int64
	// TargetKnown indicates whether the target address is known.
	TargetKnown bool
}

// BranchPredictor predicts every branch with one global direction flag and
// a target table keyed by the branch's static address.
//
// The flag starts not-taken and flips on every misprediction. With
// prediction disabled every branch is predicted to fall through.
type BranchPredictor struct {
	enabled bool
	taken   bool
	btb     map[int64]int64

	stats BranchPredictorStats
}

// NewBranchPredictor creates a predictor.
func NewBranchPredictor(enabled bool) *BranchPredictor {
	return &BranchPredictor{
		enabled: enabled,
		btb:     make(map[int64]int64),
	}
}

// Enabled reports whether predictions may redirect fetch.
func (bp *BranchPredictor) Enabled() bool {
	return bp.enabled
}

// Flag returns the global direction flag.
func (bp *BranchPredictor) Flag() bool {
	return bp.taken
}

// Predict makes a prediction for the branch at pc whose literal target is
// target. The first prediction for pc records the target; later ones reuse
// the recorded value.
func (bp *BranchPredictor) Predict(pc, target int64) Prediction {
	bp.stats.Predictions++

	if !bp.enabled {
		return Prediction{}
	}

	recorded, ok := bp.btb[pc]
	if ok {
		bp.stats.BTBHits++
	} else {
		bp.stats.BTBMisses++
		bp.btb[pc] = target
		recorded = target
	}

	return Prediction{Taken: bp.taken, Target: recorded, TargetKnown: true}
}

// Update records the resolved outcome of a branch predicted as pred. It
// reports whether the branch was mispredicted, in which case the global
// flag flips.
func (bp *BranchPredictor) Update(pred Prediction, taken bool) bool {
	if pred.Taken == taken {
		bp.stats.Correct++
		return false
	}

	bp.stats.Mispredictions++
	bp.taken = !bp.taken
	return true
}

// Target returns the recorded target of the branch at pc.
func (bp *BranchPredictor) Target(pc int64) (int64, bool) {
	t, ok := bp.btb[pc]
	return t, ok
}

// Stats returns the branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears all predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	bp.taken = false
	bp.btb = make(map[int64]int64)
	bp.stats = BranchPredictorStats{}
}
