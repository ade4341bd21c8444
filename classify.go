package main

import (
	"fmt"
	"strings"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The inference service: load a trained checkpoint and a tokenizer once,
// then classify arbitrary review text on demand.
//
// The model is read-only after loading and the tokenizer is safe for
// concurrent use, so a single Classifier serves concurrent requests (the
// HTTP demo calls Classify from request goroutines) without locking.
//
// Inference uses dynamic-length encoding: a 30-token review runs a 30-long
// sequence, not a 256-long padded one. The attention mask makes the two
// equivalent in output; the short one is just cheaper.
//
// ===========================================================================

// Prediction is one classification outcome.
type Prediction struct {
	Label      int     // ClassNegative or ClassPositive
	Sentiment  string  // "Negative" or "Positive"
	Confidence float64 // softmax probability of the predicted class
}

// Classifier scores review text with a trained model.
type Classifier struct {
	model   *SentimentEncoder
	encoder TextEncoder
}

// NewClassifier loads the checkpoint at modelPath and the tokenizer at
// tokenizerPath. Either failing is fatal for the caller: there is no
// degraded mode for a classifier without a model.
func NewClassifier(modelPath, tokenizerPath string) (*Classifier, error) {
	model, err := LoadSentimentEncoder(modelPath)
	if err != nil {
		return nil, fmt.Errorf("classify: loading model: %w", err)
	}

	config := model.Config()
	encoder, err := NewReviewEncoder(tokenizerPath, config.SeqLen)
	if err != nil {
		return nil, fmt.Errorf("classify: loading tokenizer: %w", err)
	}

	return NewClassifierWith(model, encoder)
}

// NewClassifierWith wraps an already-loaded model and encoder. The encoder's
// vocabulary and length must fit the model.
func NewClassifierWith(model *SentimentEncoder, encoder TextEncoder) (*Classifier, error) {
	config := model.Config()
	if encoder.MaxLength() > config.SeqLen {
		return nil, fmt.Errorf("classify: encoder length %d exceeds model maximum %d", encoder.MaxLength(), config.SeqLen)
	}
	if encoder.VocabSize() > config.VocabSize {
		return nil, fmt.Errorf("classify: tokenizer vocabulary %d exceeds model vocabulary %d", encoder.VocabSize(), config.VocabSize)
	}
	if encoder.PadID() != config.PadID {
		return nil, fmt.Errorf("classify: tokenizer pad ID %d does not match the model's %d; wrong tokenizer for this checkpoint", encoder.PadID(), config.PadID)
	}
	return &Classifier{model: model, encoder: encoder}, nil
}

// Classify scores one review. Empty or whitespace-only text is an error.
func (c *Classifier) Classify(text string) (Prediction, error) {
	if strings.TrimSpace(text) == "" {
		return Prediction{}, fmt.Errorf("classify: empty input text")
	}

	ids, mask, err := c.encoder.EncodeDynamic(text)
	if err != nil {
		return Prediction{}, err
	}

	logits := c.model.Forward(ids, mask)

	row := make([]float64, NumClasses)
	for i := 0; i < NumClasses; i++ {
		row[i] = logits.At(0, i)
	}
	probs := softmaxSlice(row)
	label := argmax(probs)

	return Prediction{
		Label:      label,
		Sentiment:  SentimentName(label),
		Confidence: probs[label],
	}, nil
}

// ClassifyBatch scores multiple reviews. The first error aborts the batch.
func (c *Classifier) ClassifyBatch(texts []string) ([]Prediction, error) {
	predictions := make([]Prediction, 0, len(texts))
	for i, text := range texts {
		p, err := c.Classify(text)
		if err != nil {
			return nil, fmt.Errorf("classify: text %d: %w", i, err)
		}
		predictions = append(predictions, p)
	}
	return predictions, nil
}

// Model exposes the underlying encoder, for callers that want to report its
// configuration.
func (c *Classifier) Model() *SentimentEncoder {
	return c.model
}

// SentimentName maps a class index to its display name.
func SentimentName(label int) string {
	if label == ClassPositive {
		return "Positive"
	}
	return "Negative"
}

// FormatPrediction renders a prediction the way the CLI prints it, e.g.
// "Positive (0.98 confidence)".
func FormatPrediction(p Prediction) string {
	return fmt.Sprintf("%s (%.2f confidence)", p.Sentiment, p.Confidence)
}
