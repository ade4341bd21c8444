package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadReviewCSV(t *testing.T) {
	path := writeCSV(t, "review,sentiment\n"+
		"\"A wonderful, moving film.\",positive\n"+
		"Dreadful from start to finish.,negative\n"+
		"Loved every minute of it,POSITIVE\n")

	examples, err := LoadReviewCSV(path)
	require.NoError(t, err)
	require.Len(t, examples, 3)

	assert.Equal(t, "A wonderful, moving film.", examples[0].Text)
	assert.Equal(t, ClassPositive, examples[0].Label)
	assert.Equal(t, 4, examples[0].WordCount)

	assert.Equal(t, ClassNegative, examples[1].Label)
	assert.Equal(t, ClassPositive, examples[2].Label, "labels should be case-insensitive")
}

func TestLoadReviewCSVRejectsUnknownSentiment(t *testing.T) {
	path := writeCSV(t, "review,sentiment\nokay movie,meh\n")
	_, err := LoadReviewCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sentiment")
}

func TestLoadReviewCSVMissingFile(t *testing.T) {
	_, err := LoadReviewCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestLoadReviewCSVEmpty(t *testing.T) {
	path := writeCSV(t, "review,sentiment\n")
	_, err := LoadReviewCSV(path)
	require.Error(t, err)
}

func TestFilterByLength(t *testing.T) {
	long := strings.Repeat("word ", 300)
	examples := []Example{
		{Text: "short review", WordCount: 2},
		{Text: long, WordCount: 300},
		{Text: strings.Repeat("w ", 299), WordCount: 299},
	}

	kept := FilterByLength(examples, maxReviewWords)
	require.Len(t, kept, 2)
	assert.Equal(t, 2, kept[0].WordCount)
	assert.Equal(t, 299, kept[1].WordCount, "299 words is under the cutoff")
}

func TestSplitTrainValidation(t *testing.T) {
	examples := make([]Example, 100)
	for i := range examples {
		examples[i] = Example{Text: string(rune('a' + i%26)), Label: i % 2, WordCount: i}
	}

	train, val, err := SplitTrainValidation(examples, 0.8, 42)
	require.NoError(t, err)
	assert.Len(t, train, 80)
	assert.Len(t, val, 20)

	// Disjoint and covering: every example lands in exactly one partition.
	seen := make(map[int]int)
	for _, ex := range train {
		seen[ex.WordCount]++
	}
	for _, ex := range val {
		seen[ex.WordCount]++
	}
	require.Len(t, seen, 100)
	for wc, n := range seen {
		assert.Equal(t, 1, n, "example %d appears %d times", wc, n)
	}
}

func TestSplitTrainValidationReproducible(t *testing.T) {
	examples := make([]Example, 50)
	for i := range examples {
		examples[i] = Example{WordCount: i}
	}

	train1, val1, err := SplitTrainValidation(examples, 0.8, 42)
	require.NoError(t, err)
	train2, val2, err := SplitTrainValidation(examples, 0.8, 42)
	require.NoError(t, err)

	assert.Equal(t, train1, train2, "same seed must give the same split")
	assert.Equal(t, val1, val2)

	train3, _, err := SplitTrainValidation(examples, 0.8, 7)
	require.NoError(t, err)
	assert.NotEqual(t, train1, train3, "different seeds should differ")
}

func TestSplitTrainValidationBadFraction(t *testing.T) {
	examples := []Example{{}, {}}
	_, _, err := SplitTrainValidation(examples, 0, 1)
	require.Error(t, err)
	_, _, err = SplitTrainValidation(examples, 1, 1)
	require.Error(t, err)
}

func TestSubsample(t *testing.T) {
	examples := make([]Example, 20)
	for i := range examples {
		examples[i] = Example{WordCount: i}
	}

	sub, err := Subsample(examples, 5, 42)
	require.NoError(t, err)
	require.Len(t, sub, 5)

	// No duplicates: drawn without replacement.
	seen := make(map[int]bool)
	for _, ex := range sub {
		assert.False(t, seen[ex.WordCount])
		seen[ex.WordCount] = true
	}

	again, err := Subsample(examples, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, sub, again, "same seed must give the same subsample")
}

func TestSubsampleTooLarge(t *testing.T) {
	_, err := Subsample([]Example{{}, {}}, 3, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot subsample")
}

// assertPairwiseDisjoint checks that no example (tagged by WordCount) lands
// in more than one partition.
func assertPairwiseDisjoint(t *testing.T, p Partitions) {
	t.Helper()
	seen := make(map[int]string)
	for name, part := range map[string][]Example{
		"train": p.Train, "validation": p.Validation, "test": p.Test,
	} {
		for _, ex := range part {
			if other, dup := seen[ex.WordCount]; dup {
				t.Errorf("example %d is in both %s and %s", ex.WordCount, other, name)
			}
			seen[ex.WordCount] = name
		}
	}
}

func TestPreparePartitionsWithNativeTestSplit(t *testing.T) {
	trainPool := make([]Example, 100)
	for i := range trainPool {
		trainPool[i] = Example{Label: i % 2, WordCount: i}
	}
	testPool := make([]Example, 40)
	for i := range testPool {
		testPool[i] = Example{Label: i % 2, WordCount: 1000 + i}
	}

	p, err := PreparePartitions(trainPool, testPool, PartitionConfig{
		MaxWords:      maxReviewWords,
		TrainFraction: 0.8,
		TrainSize:     50,
		ValSize:       10,
		TestSize:      20,
		Seed:          42,
	})
	require.NoError(t, err)

	assert.Len(t, p.Train, 50)
	assert.Len(t, p.Validation, 10)
	assert.Len(t, p.Test, 20)
	assertPairwiseDisjoint(t, p)

	for _, ex := range p.Test {
		assert.GreaterOrEqual(t, ex.WordCount, 1000, "test examples come only from the test pool")
	}
}

func TestPreparePartitionsCarvesTestFromHoldout(t *testing.T) {
	trainPool := make([]Example, 100)
	for i := range trainPool {
		trainPool[i] = Example{Label: i % 2, WordCount: i}
	}

	p, err := PreparePartitions(trainPool, nil, PartitionConfig{
		MaxWords:      maxReviewWords,
		TrainFraction: 0.8,
		Seed:          42,
	})
	require.NoError(t, err)

	assert.Len(t, p.Train, 80)
	assert.Len(t, p.Validation, 10, "holdout splits in half")
	assert.Len(t, p.Test, 10)
	assertPairwiseDisjoint(t, p)

	total := len(p.Train) + len(p.Validation) + len(p.Test)
	assert.Equal(t, 100, total, "the three partitions cover the pool")
}

func TestPreparePartitionsReproducible(t *testing.T) {
	pool := make([]Example, 60)
	for i := range pool {
		pool[i] = Example{WordCount: i}
	}
	cfg := PartitionConfig{MaxWords: maxReviewWords, TrainFraction: 0.8, Seed: 7}

	a, err := PreparePartitions(pool, nil, cfg)
	require.NoError(t, err)
	b, err := PreparePartitions(pool, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed must give the same partitions")
}

func TestPreparePartitionsInsufficientData(t *testing.T) {
	pool := make([]Example, 20)
	for i := range pool {
		pool[i] = Example{WordCount: i}
	}

	_, err := PreparePartitions(pool, nil, PartitionConfig{
		MaxWords:      maxReviewWords,
		TrainFraction: 0.8,
		TrainSize:     3000,
		Seed:          42,
	})
	require.Error(t, err, "a partition too small for the requested size fails loudly")
	assert.Contains(t, err.Error(), "train partition")
}

func TestPreparePartitionsFiltersTestPool(t *testing.T) {
	trainPool := make([]Example, 10)
	for i := range trainPool {
		trainPool[i] = Example{WordCount: i}
	}
	testPool := []Example{{WordCount: maxReviewWords + 5}}

	_, err := PreparePartitions(trainPool, testPool, PartitionConfig{
		MaxWords:      maxReviewWords,
		TrainFraction: 0.8,
		Seed:          1,
	})
	require.Error(t, err, "a test pool emptied by the length filter is an error")
}

func TestClassBalance(t *testing.T) {
	neg, pos := ClassBalance([]Example{
		{Label: ClassPositive}, {Label: ClassNegative}, {Label: ClassPositive},
	})
	assert.Equal(t, 1, neg)
	assert.Equal(t, 2, pos)
}
