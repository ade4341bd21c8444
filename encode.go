package main

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The bridge between raw review text and the integer sequences the encoder
// consumes. Tokenization itself is delegated to a HuggingFace-compatible
// tokenizer loaded from a tokenizer.json file; this file owns truncation,
// padding, and the attention mask.
//
// Two encoding modes:
//
//   - Encode: fixed-length output (truncate + pad to MaxLength). Used for
//     training and evaluation, where every example in a batch must have the
//     same length.
//   - EncodeDynamic: truncate only, no padding. Used at inference time, where
//     a short review should not pay for 200 positions of padding.
//
// The attention mask is 1 for real tokens and 0 for [PAD] positions; the
// encoder uses it to keep padding out of attention.
//
// ===========================================================================

// TextEncoder converts review text into model input. Implementations must be
// safe for concurrent use; the HTTP classifier calls Encode from multiple
// request goroutines.
type TextEncoder interface {
	// Encode returns exactly MaxLength() token IDs and mask entries,
	// truncating or padding as needed.
	Encode(text string) (inputIDs, attentionMask []int, err error)

	// EncodeDynamic returns the natural-length encoding, truncated to
	// MaxLength() but never padded.
	EncodeDynamic(text string) (inputIDs, attentionMask []int, err error)

	// MaxLength is the fixed sequence length Encode produces.
	MaxLength() int

	// VocabSize is the tokenizer's vocabulary size.
	VocabSize() int

	// PadID is the token ID used to fill padded positions.
	PadID() int
}

// ReviewEncoder wraps a pretrained subword tokenizer with the fixed-length
// policy the model expects.
type ReviewEncoder struct {
	tokenizer *tk.Tokenizer
	maxLength int
	padID     int
	vocabSize int
}

// NewReviewEncoder loads a tokenizer.json file (WordPiece or BPE, anything
// the HuggingFace format describes) and wraps it with the given sequence
// length. The padding ID is looked up from the tokenizer's own vocabulary,
// not assumed: a tokenizer whose [PAD] is not 0 would otherwise embed a real
// vocabulary token at every padded position.
func NewReviewEncoder(tokenizerPath string, maxLength int) (*ReviewEncoder, error) {
	if maxLength <= 0 {
		return nil, fmt.Errorf("encode: max length must be positive, got %d", maxLength)
	}

	t, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("encode: loading tokenizer from %s: %w", tokenizerPath, err)
	}

	vocab := t.GetVocab(true)
	return &ReviewEncoder{
		tokenizer: t,
		maxLength: maxLength,
		padID:     lookupPadID(vocab),
		vocabSize: len(vocab),
	}, nil
}

// lookupPadID finds the padding token's ID in the vocabulary, checking the
// spellings the common tokenizer families use. A vocabulary with no padding
// token at all falls back to 0.
func lookupPadID(vocab map[string]int) int {
	for _, token := range []string{"[PAD]", "<pad>", "<|pad|>"} {
		if id, ok := vocab[token]; ok {
			return id
		}
	}
	return 0
}

// Encode tokenizes text and returns exactly maxLength IDs plus the matching
// attention mask. Special tokens ([CLS]/[SEP] for a BERT tokenizer) are
// added by the tokenizer's own post-processor.
func (e *ReviewEncoder) Encode(text string) ([]int, []int, error) {
	ids, err := e.rawIDs(text)
	if err != nil {
		return nil, nil, err
	}

	inputIDs := make([]int, e.maxLength)
	attentionMask := make([]int, e.maxLength)
	for i := 0; i < e.maxLength; i++ {
		if i < len(ids) {
			inputIDs[i] = ids[i]
			attentionMask[i] = 1
		} else {
			inputIDs[i] = e.padID
			attentionMask[i] = 0
		}
	}
	return inputIDs, attentionMask, nil
}

// EncodeDynamic tokenizes text without padding. The returned slices have the
// encoding's natural length, capped at maxLength.
func (e *ReviewEncoder) EncodeDynamic(text string) ([]int, []int, error) {
	ids, err := e.rawIDs(text)
	if err != nil {
		return nil, nil, err
	}

	attentionMask := make([]int, len(ids))
	for i := range attentionMask {
		attentionMask[i] = 1
	}
	return ids, attentionMask, nil
}

// rawIDs runs the tokenizer with special tokens enabled and truncates to
// maxLength.
func (e *ReviewEncoder) rawIDs(text string) ([]int, error) {
	enc, err := e.tokenizer.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encode: tokenizing: %w", err)
	}

	ids := enc.Ids
	if len(ids) == 0 {
		return nil, fmt.Errorf("encode: text produced no tokens")
	}
	if len(ids) > e.maxLength {
		ids = ids[:e.maxLength]
	}

	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}

func (e *ReviewEncoder) MaxLength() int { return e.maxLength }
func (e *ReviewEncoder) VocabSize() int { return e.vocabSize }
func (e *ReviewEncoder) PadID() int     { return e.padID }

// EncodedExample is one training example after tokenization. The raw text is
// gone; only the model inputs and the label remain.
type EncodedExample struct {
	InputIDs      []int
	AttentionMask []int
	Label         int
}

// EncodeDataset tokenizes every example with the fixed-length policy.
func EncodeDataset(encoder TextEncoder, examples []Example) ([]EncodedExample, error) {
	encoded := make([]EncodedExample, 0, len(examples))
	for i, ex := range examples {
		ids, mask, err := encoder.Encode(ex.Text)
		if err != nil {
			return nil, fmt.Errorf("encode: example %d: %w", i, err)
		}
		encoded = append(encoded, EncodedExample{
			InputIDs:      ids,
			AttentionMask: mask,
			Label:         ex.Label,
		})
	}
	return encoded, nil
}
