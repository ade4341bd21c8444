package main

import (
	"fmt"
	"math/rand"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Mini-batch assembly over encoded examples.
//
// A BatchSource owns one pass order at a time. With shuffling enabled it
// draws a fresh permutation at the start of every pass, so no two epochs
// visit examples in the same order (the per-source RNG is seeded once, at
// construction). Validation sources disable shuffling so the loss is
// computed over an identical sequence every epoch.
//
// The final short batch is kept by default; dropLast exists for callers that
// want uniform batch shapes.
//
// ===========================================================================

// Batch is one mini-batch of fixed-length encoded examples.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
	Labels        []int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// BatchSource yields mini-batches over a set of encoded examples.
type BatchSource struct {
	examples  []EncodedExample
	batchSize int
	shuffle   bool
	dropLast  bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewBatchSource creates a batch source. seed drives the shuffle order and
// is ignored when shuffle is false.
func NewBatchSource(examples []EncodedExample, batchSize int, shuffle, dropLast bool, seed int64) (*BatchSource, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch: batch size must be positive, got %d", batchSize)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("batch: no examples")
	}
	if dropLast && len(examples) < batchSize {
		return nil, fmt.Errorf("batch: %d examples cannot fill one batch of %d with dropLast set", len(examples), batchSize)
	}

	s := &BatchSource{
		examples:  examples,
		batchSize: batchSize,
		shuffle:   shuffle,
		dropLast:  dropLast,
		rng:       rand.New(rand.NewSource(seed)),
	}
	s.Reset()
	return s, nil
}

// Reset starts a new pass. With shuffling on, this draws a new permutation.
func (s *BatchSource) Reset() {
	if s.order == nil {
		s.order = make([]int, len(s.examples))
	}
	for i := range s.order {
		s.order[i] = i
	}
	if s.shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}
	s.pos = 0
}

// Next returns the next batch in the current pass, or ok=false when the pass
// is exhausted. Call Reset to start another pass.
func (s *BatchSource) Next() (Batch, bool) {
	if s.pos >= len(s.order) {
		return Batch{}, false
	}

	end := s.pos + s.batchSize
	if end > len(s.order) {
		if s.dropLast {
			return Batch{}, false
		}
		end = len(s.order)
	}

	batch := Batch{
		InputIDs:      make([][]int, 0, end-s.pos),
		AttentionMask: make([][]int, 0, end-s.pos),
		Labels:        make([]int, 0, end-s.pos),
	}
	for _, idx := range s.order[s.pos:end] {
		ex := s.examples[idx]
		batch.InputIDs = append(batch.InputIDs, ex.InputIDs)
		batch.AttentionMask = append(batch.AttentionMask, ex.AttentionMask)
		batch.Labels = append(batch.Labels, ex.Label)
	}
	s.pos = end

	return batch, true
}

// NumBatches returns how many batches one full pass yields.
func (s *BatchSource) NumBatches() int {
	n := len(s.examples) / s.batchSize
	if !s.dropLast && len(s.examples)%s.batchSize != 0 {
		n++
	}
	return n
}

// NumExamples returns the number of examples the source covers.
func (s *BatchSource) NumExamples() int {
	return len(s.examples)
}
