package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Dataset preparation for the sentiment classifier, from raw CSV to the
// filtered, split, subsampled example sets the trainer consumes.
//
// Pipeline, in order:
//
//	1. Load the CSV (review text + "positive"/"negative" sentiment label).
//	2. Drop reviews with 300 or more whitespace-separated words. Long
//	   reviews mostly get truncated away by the tokenizer anyway; dropping
//	   them keeps the training signal aligned with what the model sees.
//	3. Shuffle with a fixed seed and split 80/20 into train/validation.
//	   The same seed always yields the same split, and no two partitions
//	   share an example. The test partition comes from the source's own
//	   test split when it has one, or from the held-out share otherwise.
//	4. Optionally subsample each partition to a fixed size for fast CPU
//	   runs.
//
// Every random choice goes through an explicit seed so a run is exactly
// reproducible.
//
// ===========================================================================

// Sentiment labels as they appear in the CSV.
const (
	labelPositive = "positive"
	labelNegative = "negative"
)

// maxReviewWords is the word-count cutoff: reviews at or above this many
// whitespace-separated words are dropped before training.
const maxReviewWords = 300

// Example is one labeled review after preparation.
type Example struct {
	Text      string
	Label     int // ClassNegative or ClassPositive
	WordCount int
}

// reviewRecord maps one CSV row. The column names match the IMDB review
// dump format.
type reviewRecord struct {
	Review    string `csv:"review"`
	Sentiment string `csv:"sentiment"`
}

// LoadReviewCSV reads a labeled review CSV from path. Rows with an unknown
// sentiment value are an error, not a skip: a malformed label usually means
// the wrong file, and silently dropping rows would hide that.
func LoadReviewCSV(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: opening %s: %w", path, err)
	}
	defer f.Close()

	var records []reviewRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("dataset: parsing %s: %w", path, err)
	}

	examples := make([]Example, 0, len(records))
	for i, rec := range records {
		var label int
		switch strings.ToLower(strings.TrimSpace(rec.Sentiment)) {
		case labelPositive:
			label = ClassPositive
		case labelNegative:
			label = ClassNegative
		default:
			return nil, fmt.Errorf("dataset: row %d has unknown sentiment %q", i+1, rec.Sentiment)
		}

		examples = append(examples, Example{
			Text:      rec.Review,
			Label:     label,
			WordCount: len(strings.Fields(rec.Review)),
		})
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("dataset: %s contains no examples", path)
	}
	return examples, nil
}

// FilterByLength keeps only examples shorter than maxWords whitespace-
// separated words.
func FilterByLength(examples []Example, maxWords int) []Example {
	kept := make([]Example, 0, len(examples))
	for _, ex := range examples {
		if ex.WordCount < maxWords {
			kept = append(kept, ex)
		}
	}
	return kept
}

// SplitTrainValidation shuffles examples with the given seed and splits them
// into train and validation sets. trainFraction is the share that goes to
// training (e.g. 0.8). The partitions are disjoint and together cover the
// input exactly.
func SplitTrainValidation(examples []Example, trainFraction float64, seed int64) (train, validation []Example, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, fmt.Errorf("dataset: train fraction must be in (0,1), got %g", trainFraction)
	}
	if len(examples) < 2 {
		return nil, nil, fmt.Errorf("dataset: need at least 2 examples to split, have %d", len(examples))
	}

	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(float64(len(shuffled)) * trainFraction)
	if cut == 0 {
		cut = 1
	}
	if cut == len(shuffled) {
		cut = len(shuffled) - 1
	}

	return shuffled[:cut], shuffled[cut:], nil
}

// Subsample returns n examples drawn without replacement using the given
// seed. Requesting more examples than exist is an error.
func Subsample(examples []Example, n int, seed int64) ([]Example, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: subsample size must be positive, got %d", n)
	}
	if n > len(examples) {
		return nil, fmt.Errorf("dataset: cannot subsample %d from %d examples", n, len(examples))
	}

	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return shuffled[:n], nil
}

// Partitions holds the three prepared dataset splits. They are pairwise
// example-disjoint: train and validation are carved from one pool, and test
// either comes from the source's own test split or from the held-out share
// of the same carve.
type Partitions struct {
	Train      []Example
	Validation []Example
	Test       []Example
}

// PartitionConfig collects the knobs of dataset preparation. A size of 0
// keeps the whole partition.
type PartitionConfig struct {
	MaxWords      int     // word-count filter cutoff
	TrainFraction float64 // share of the train pool kept for training
	TrainSize     int     // subsample sizes per partition
	ValSize       int
	TestSize      int
	Seed          int64
}

// PreparePartitions runs the full preparation pipeline: length-filter the
// pools, carve train/validation from the training pool, and subsample every
// partition with the same seed. testPool is the raw source's native test
// split; pass nil when the source has none, and the test partition is carved
// from the validation holdout instead.
//
// Subsampling fails loudly when a partition cannot fill the requested size;
// a silently smaller partition would not be the run the caller asked for.
func PreparePartitions(trainPool, testPool []Example, cfg PartitionConfig) (Partitions, error) {
	var p Partitions

	filtered := FilterByLength(trainPool, cfg.MaxWords)
	train, holdout, err := SplitTrainValidation(filtered, cfg.TrainFraction, cfg.Seed)
	if err != nil {
		return p, err
	}

	var validation, test []Example
	if testPool != nil {
		validation = holdout
		test = FilterByLength(testPool, cfg.MaxWords)
		if len(test) == 0 {
			return p, fmt.Errorf("dataset: test pool is empty after filtering")
		}
	} else {
		validation, test, err = SplitTrainValidation(holdout, 0.5, cfg.Seed)
		if err != nil {
			return p, fmt.Errorf("dataset: carving test from holdout: %w", err)
		}
	}

	if cfg.TrainSize > 0 {
		if train, err = Subsample(train, cfg.TrainSize, cfg.Seed); err != nil {
			return p, fmt.Errorf("dataset: train partition: %w", err)
		}
	}
	if cfg.ValSize > 0 {
		if validation, err = Subsample(validation, cfg.ValSize, cfg.Seed); err != nil {
			return p, fmt.Errorf("dataset: validation partition: %w", err)
		}
	}
	if cfg.TestSize > 0 {
		if test, err = Subsample(test, cfg.TestSize, cfg.Seed); err != nil {
			return p, fmt.Errorf("dataset: test partition: %w", err)
		}
	}

	p.Train = train
	p.Validation = validation
	p.Test = test
	return p, nil
}

// ClassBalance counts examples per class. Reported during preparation so a
// badly skewed subsample is visible before training starts.
func ClassBalance(examples []Example) (negative, positive int) {
	for _, ex := range examples {
		if ex.Label == ClassPositive {
			positive++
		} else {
			negative++
		}
	}
	return negative, positive
}
