package main

import "fmt"

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Evaluation: run the model over a batch source without touching gradients,
// collect per-example losses and predictions, and reduce them to the four
// standard binary classification metrics.
//
// Positive sentiment (class 1) is the positive class for precision/recall.
// Any metric whose denominator is zero is reported as 0 rather than NaN, so
// a degenerate model (predicting one class for everything) produces readable
// numbers instead of poisoning downstream arithmetic.
//
// ===========================================================================

// EvalResult holds the raw outcome of an evaluation pass.
type EvalResult struct {
	AvgLoss     float64
	Predictions []int
	Labels      []int
}

// Metrics are the standard binary classification metrics over an evaluation
// pass, with class 1 (positive sentiment) as the positive class.
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Evaluate runs the model over every batch in the source and returns the
// mean per-example loss plus aligned prediction and label slices. The model
// is only read, never updated.
//
// The loss is averaged over examples, not over batches: with a keep-last
// source the final batch is smaller, and a per-batch mean would let those
// few examples weigh more than the rest. Training reports a per-batch mean
// instead; the two agree whenever every batch is full.
func Evaluate(model *SentimentEncoder, source *BatchSource) (*EvalResult, error) {
	result := &EvalResult{}
	totalLoss := 0.0
	numExamples := 0

	source.Reset()
	for {
		batch, ok := source.Next()
		if !ok {
			break
		}
		for i := 0; i < batch.Size(); i++ {
			logits := model.Forward(batch.InputIDs[i], batch.AttentionMask[i])

			totalLoss += CrossEntropyLoss(logits, []int{batch.Labels[i]})
			numExamples++

			row := make([]float64, NumClasses)
			for c := 0; c < NumClasses; c++ {
				row[c] = logits.At(0, c)
			}
			result.Predictions = append(result.Predictions, argmax(row))
			result.Labels = append(result.Labels, batch.Labels[i])
		}
	}

	if numExamples == 0 {
		return nil, fmt.Errorf("evaluate: source yielded no examples")
	}

	result.AvgLoss = totalLoss / float64(numExamples)
	return result, nil
}

// ComputeMetrics reduces aligned prediction and label slices to accuracy,
// precision, recall, and F1. Panics if the slices differ in length; that is
// a caller bug, not data.
func ComputeMetrics(predictions, labels []int) Metrics {
	if len(predictions) != len(labels) {
		panic(fmt.Sprintf("evaluate: %d predictions vs %d labels", len(predictions), len(labels)))
	}
	if len(predictions) == 0 {
		return Metrics{}
	}

	var tp, fp, fn, correct int
	for i := range predictions {
		if predictions[i] == labels[i] {
			correct++
		}
		switch {
		case predictions[i] == ClassPositive && labels[i] == ClassPositive:
			tp++
		case predictions[i] == ClassPositive && labels[i] == ClassNegative:
			fp++
		case predictions[i] == ClassNegative && labels[i] == ClassPositive:
			fn++
		}
	}

	m := Metrics{
		Accuracy: float64(correct) / float64(len(predictions)),
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func (m Metrics) String() string {
	return fmt.Sprintf("accuracy %.4f, precision %.4f, recall %.4f, F1 %.4f",
		m.Accuracy, m.Precision, m.Recall, m.F1)
}
