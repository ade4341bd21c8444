package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEncoded(n, seqLen int) []EncodedExample {
	encoded := make([]EncodedExample, n)
	for i := range encoded {
		ids := make([]int, seqLen)
		mask := make([]int, seqLen)
		ids[0] = i // tag each example by its index for tracking
		mask[0] = 1
		encoded[i] = EncodedExample{InputIDs: ids, AttentionMask: mask, Label: i % 2}
	}
	return encoded
}

func collectTags(source *BatchSource) []int {
	var tags []int
	for {
		batch, ok := source.Next()
		if !ok {
			break
		}
		for _, ids := range batch.InputIDs {
			tags = append(tags, ids[0])
		}
	}
	return tags
}

func TestBatchSourceCoversAllExamples(t *testing.T) {
	source, err := NewBatchSource(makeEncoded(10, 4), 3, false, false, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, source.NumBatches(), "10 examples at batch size 3 is 4 batches")

	sizes := []int{}
	total := 0
	source.Reset()
	for {
		batch, ok := source.Next()
		if !ok {
			break
		}
		sizes = append(sizes, batch.Size())
		total += batch.Size()
	}
	assert.Equal(t, []int{3, 3, 3, 1}, sizes, "final short batch is kept")
	assert.Equal(t, 10, total)
}

func TestBatchSourceDropLast(t *testing.T) {
	source, err := NewBatchSource(makeEncoded(10, 4), 3, false, true, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, source.NumBatches())

	tags := collectTags(source)
	assert.Len(t, tags, 9, "dropLast discards the short batch")
}

func TestBatchSourceUnshuffledOrder(t *testing.T) {
	source, err := NewBatchSource(makeEncoded(6, 4), 2, false, false, 99)
	require.NoError(t, err)

	tags := collectTags(source)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, tags, "unshuffled source preserves input order")

	source.Reset()
	assert.Equal(t, tags, collectTags(source), "order is stable across passes")
}

func TestBatchSourceShuffleFreshEachPass(t *testing.T) {
	source, err := NewBatchSource(makeEncoded(32, 4), 4, true, false, 42)
	require.NoError(t, err)

	first := collectTags(source)
	source.Reset()
	second := collectTags(source)

	assert.Len(t, first, 32)
	assert.ElementsMatch(t, first, second, "every pass covers every example")
	assert.NotEqual(t, first, second, "each pass draws a fresh permutation")
}

func TestBatchSourceShuffleSeeded(t *testing.T) {
	a, err := NewBatchSource(makeEncoded(16, 4), 4, true, false, 7)
	require.NoError(t, err)
	b, err := NewBatchSource(makeEncoded(16, 4), 4, true, false, 7)
	require.NoError(t, err)

	assert.Equal(t, collectTags(a), collectTags(b), "same seed gives the same order")
}

func TestBatchSourceValidation(t *testing.T) {
	_, err := NewBatchSource(makeEncoded(4, 4), 0, false, false, 1)
	require.Error(t, err)

	_, err = NewBatchSource(nil, 2, false, false, 1)
	require.Error(t, err)

	_, err = NewBatchSource(makeEncoded(3, 4), 8, false, true, 1)
	require.Error(t, err, "dropLast with fewer examples than one batch yields nothing")
}
