package main

import "math"

// EarlyStopper tracks validation loss across epochs and signals when
// training should stop.
//
// Improvement means strictly lower than the best loss seen so far; an equal
// loss counts against patience. With patience P, training stops after P
// consecutive epochs without improvement.
type EarlyStopper struct {
	patience int
	bestLoss float64
	counter  int
}

// NewEarlyStopper creates a stopper. Patience 0 stops on the first epoch
// that fails to improve.
func NewEarlyStopper(patience int) *EarlyStopper {
	return &EarlyStopper{
		patience: patience,
		bestLoss: math.Inf(1),
	}
}

// Observe records one epoch's validation loss. improved reports whether this
// loss is a new best (the caller checkpoints on it); stop reports whether
// patience is exhausted.
func (s *EarlyStopper) Observe(valLoss float64) (improved, stop bool) {
	if valLoss < s.bestLoss {
		s.bestLoss = valLoss
		s.counter = 0
		return true, false
	}

	s.counter++
	return false, s.counter >= s.patience
}

// BestLoss returns the lowest validation loss observed so far.
func (s *EarlyStopper) BestLoss() float64 {
	return s.bestLoss
}
