package main

import "strings"

// stubEncoder is a minimal whitespace tokenizer for tests: a fixed word
// vocabulary, a [CLS] slot at position 0, and the same truncation/padding
// policy as the real encoder. It keeps model and pipeline tests hermetic,
// with no tokenizer.json on disk.
type stubEncoder struct {
	vocab     map[string]int
	nextID    int
	maxLength int
}

const (
	stubPadID = 0
	stubClsID = 1
	stubUnkID = 2
)

func newStubEncoder(maxLength int) *stubEncoder {
	return &stubEncoder{
		vocab:     make(map[string]int),
		nextID:    3,
		maxLength: maxLength,
	}
}

func (e *stubEncoder) id(word string) int {
	word = strings.ToLower(word)
	if id, ok := e.vocab[word]; ok {
		return id
	}
	e.vocab[word] = e.nextID
	e.nextID++
	return e.vocab[word]
}

func (e *stubEncoder) rawIDs(text string) []int {
	ids := []int{stubClsID}
	for _, w := range strings.Fields(text) {
		ids = append(ids, e.id(w))
		if len(ids) == e.maxLength {
			break
		}
	}
	return ids
}

func (e *stubEncoder) Encode(text string) ([]int, []int, error) {
	ids := e.rawIDs(text)
	inputIDs := make([]int, e.maxLength)
	mask := make([]int, e.maxLength)
	for i := 0; i < e.maxLength; i++ {
		if i < len(ids) {
			inputIDs[i] = ids[i]
			mask[i] = 1
		} else {
			inputIDs[i] = stubPadID
		}
	}
	return inputIDs, mask, nil
}

func (e *stubEncoder) EncodeDynamic(text string) ([]int, []int, error) {
	ids := e.rawIDs(text)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return ids, mask, nil
}

func (e *stubEncoder) MaxLength() int { return e.maxLength }
func (e *stubEncoder) VocabSize() int { return 64 }
func (e *stubEncoder) PadID() int     { return stubPadID }

// tinyTestConfig is a model small enough to forward and train in
// milliseconds.
func tinyTestConfig() EncoderConfig {
	return EncoderConfig{
		VocabSize: 64,
		SeqLen:    16,
		EmbedDim:  8,
		NumHeads:  2,
		NumLayers: 1,
		FFHidden:  16,
		PadID:     stubPadID,
	}
}

// tinyCorpus is a linearly separable sentiment corpus: "good" reviews are
// positive, "bad" reviews are negative.
func tinyCorpus() []Example {
	texts := []struct {
		text  string
		label int
	}{
		{"good great wonderful film", ClassPositive},
		{"great acting good story", ClassPositive},
		{"wonderful good movie great", ClassPositive},
		{"good film wonderful acting", ClassPositive},
		{"great wonderful story good", ClassPositive},
		{"good good great film", ClassPositive},
		{"bad awful terrible film", ClassNegative},
		{"terrible acting bad story", ClassNegative},
		{"awful bad movie terrible", ClassNegative},
		{"bad film awful acting", ClassNegative},
		{"terrible awful story bad", ClassNegative},
		{"bad bad terrible film", ClassNegative},
	}

	examples := make([]Example, len(texts))
	for i, t := range texts {
		examples[i] = Example{
			Text:      t.text,
			Label:     t.label,
			WordCount: len(strings.Fields(t.text)),
		}
	}
	return examples
}
