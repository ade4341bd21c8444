package main

import (
	"fmt"
	"math"
	"math/rand"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// A BERT-style bidirectional transformer encoder with a two-class
// classification head, used to score movie reviews as positive or negative.
//
// Differences from a GPT-style decoder, and why they matter here:
//
//   - Attention is bidirectional. A review is scored as a whole, so every
//     position may attend to every other position. The only masking is
//     against [PAD] keys, so padding never influences real tokens.
//   - There is no language-model head. The hidden state of the first
//     position (the tokenizer's [CLS] slot) is pooled and projected to two
//     logits, one per sentiment class.
//
// Architecture:
//   1. Token + learned position embeddings
//   2. Stack of pre-norm transformer blocks (multi-head attention + GELU MLP)
//   3. Final layer norm
//   4. First-position pooling, linear projection to 2 logits
//
// The training path lives in encoder_backward.go: an activation-caching
// forward pass plus a hand-written backward pass through every layer.
//
// ===========================================================================

// Sentiment class indices. The label mapping is fixed: 0 is negative,
// 1 is positive.
const (
	ClassNegative = 0
	ClassPositive = 1
	NumClasses    = 2
)

// EncoderConfig holds the encoder's hyperparameters. It is serialized as the
// checkpoint header, so a saved model always reloads with the shape it was
// trained with.
type EncoderConfig struct {
	VocabSize int // Tokenizer vocabulary size
	SeqLen    int // Maximum sequence length the model accepts
	EmbedDim  int // Hidden dimension (d_model)
	NumHeads  int // Attention heads; must divide EmbedDim
	NumLayers int // Transformer blocks
	FFHidden  int // Feed-forward hidden dimension, typically 4*EmbedDim
	PadID     int // Token ID the tokenizer uses for padding
}

// DefaultEncoderConfig returns a small encoder that trains in reasonable
// time on a CPU. Nothing about the loop changes if you scale these up.
func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		VocabSize: 30522,
		SeqLen:    256,
		EmbedDim:  128,
		NumHeads:  4,
		NumLayers: 2,
		FFHidden:  512,
		PadID:     0,
	}
}

func (c EncoderConfig) validate() error {
	if c.VocabSize <= 0 || c.SeqLen <= 0 || c.EmbedDim <= 0 || c.NumLayers <= 0 || c.FFHidden <= 0 {
		return fmt.Errorf("encoder: non-positive dimension in config %+v", c)
	}
	if c.NumHeads <= 0 || c.EmbedDim%c.NumHeads != 0 {
		return fmt.Errorf("encoder: EmbedDim (%d) must be divisible by NumHeads (%d)", c.EmbedDim, c.NumHeads)
	}
	return nil
}

// SelfAttention is bidirectional multi-head self-attention with key-padding
// masking.
type SelfAttention struct {
	embedDim int
	numHeads int
	headDim  int

	wq, wk, wv, wo *Tensor
}

func NewSelfAttention(rng *rand.Rand, embedDim, numHeads int) *SelfAttention {
	headDim := embedDim / numHeads

	// Xavier-style scaling keeps pre-softmax scores in a trainable range.
	scale := math.Sqrt(2.0 / float64(embedDim))

	return &SelfAttention{
		embedDim: embedDim,
		numHeads: numHeads,
		headDim:  headDim,
		wq:       NewTensorRand(rng, scale, embedDim, embedDim),
		wk:       NewTensorRand(rng, scale, embedDim, embedDim),
		wv:       NewTensorRand(rng, scale, embedDim, embedDim),
		wo:       NewTensorRand(rng, scale, embedDim, embedDim),
	}
}

// LayerNorm normalizes each row to zero mean and unit variance, then applies
// the learned scale and shift.
type LayerNorm struct {
	dim   int
	eps   float64
	gamma *Tensor
	beta  *Tensor
}

func NewLayerNorm(dim int) *LayerNorm {
	gamma := NewTensor(dim)
	beta := NewTensor(dim)
	for i := 0; i < dim; i++ {
		gamma.data[i] = 1.0
	}
	return &LayerNorm{dim: dim, eps: 1e-5, gamma: gamma, beta: beta}
}

// Forward applies layer normalization to a (rows, features) tensor.
func (ln *LayerNorm) Forward(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("encoder: LayerNorm input must be 2D")
	}

	rows, features := x.shape[0], x.shape[1]
	out := NewTensor(rows, features)

	for r := 0; r < rows; r++ {
		mean := 0.0
		for f := 0; f < features; f++ {
			mean += x.At(r, f)
		}
		mean /= float64(features)

		variance := 0.0
		for f := 0; f < features; f++ {
			diff := x.At(r, f) - mean
			variance += diff * diff
		}
		variance /= float64(features)

		std := math.Sqrt(variance + ln.eps)
		for f := 0; f < features; f++ {
			normalized := (x.At(r, f) - mean) / std
			out.Set(normalized*ln.gamma.data[f]+ln.beta.data[f], r, f)
		}
	}
	return out
}

// FeedForward is the position-wise two-layer MLP with GELU activation.
type FeedForward struct {
	w1, b1 *Tensor
	w2, b2 *Tensor
}

func NewFeedForward(rng *rand.Rand, embedDim, hiddenDim int) *FeedForward {
	scale := math.Sqrt(2.0 / float64(embedDim))
	return &FeedForward{
		w1: NewTensorRand(rng, scale, embedDim, hiddenDim),
		b1: NewTensor(hiddenDim),
		w2: NewTensorRand(rng, scale, hiddenDim, embedDim),
		b2: NewTensor(embedDim),
	}
}

// EncoderBlock is one transformer layer: attention and MLP, each wrapped in
// a residual connection with pre-layer normalization.
type EncoderBlock struct {
	attn *SelfAttention
	ln1  *LayerNorm
	ff   *FeedForward
	ln2  *LayerNorm
}

func NewEncoderBlock(rng *rand.Rand, config EncoderConfig) *EncoderBlock {
	return &EncoderBlock{
		attn: NewSelfAttention(rng, config.EmbedDim, config.NumHeads),
		ln1:  NewLayerNorm(config.EmbedDim),
		ff:   NewFeedForward(rng, config.EmbedDim, config.FFHidden),
		ln2:  NewLayerNorm(config.EmbedDim),
	}
}

// SentimentEncoder is the full model: embeddings, encoder blocks, and the
// classification head.
//
// During training, the trainer is the sole owner and mutates parameters
// through the optimizer. After loading from a checkpoint the model is
// read-only, which makes concurrent Classify calls safe.
type SentimentEncoder struct {
	config EncoderConfig

	tokenEmbed *Tensor // (VocabSize, EmbedDim)
	posEmbed   *Tensor // (SeqLen, EmbedDim)

	blocks []*EncoderBlock

	lnFinal *LayerNorm
	clsW    *Tensor // (EmbedDim, NumClasses)
	clsB    *Tensor // (NumClasses)
}

// NewSentimentEncoder creates a randomly initialized encoder. The seed fixes
// every weight draw, so one seed always produces the same starting model.
func NewSentimentEncoder(config EncoderConfig, seed int64) (*SentimentEncoder, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))

	blocks := make([]*EncoderBlock, config.NumLayers)
	for i := range blocks {
		blocks[i] = NewEncoderBlock(rng, config)
	}

	return &SentimentEncoder{
		config:     config,
		tokenEmbed: NewTensorRand(rng, 0.02, config.VocabSize, config.EmbedDim),
		posEmbed:   NewTensorRand(rng, 0.02, config.SeqLen, config.EmbedDim),
		blocks:     blocks,
		lnFinal:    NewLayerNorm(config.EmbedDim),
		clsW:       NewTensorRand(rng, 0.02, config.EmbedDim, NumClasses),
		clsB:       NewTensor(NumClasses),
	}, nil
}

// Config returns the encoder's hyperparameters.
func (m *SentimentEncoder) Config() EncoderConfig {
	return m.config
}

// Forward computes the two class logits for one encoded example.
// inputIDs and attentionMask must have equal length, at most SeqLen.
// Returns a (1, NumClasses) tensor.
//
// This is the inference path: it never touches gradient buffers and never
// mutates parameters.
func (m *SentimentEncoder) Forward(inputIDs, attentionMask []int) *Tensor {
	logits, _ := m.ForwardWithCache(inputIDs, attentionMask)
	return logits
}

// Parameters returns every learnable tensor in a fixed, stable order. The
// optimizer iterates this list, and the checkpoint format serializes tensors
// in exactly this order.
func (m *SentimentEncoder) Parameters() []*Tensor {
	params := []*Tensor{m.tokenEmbed, m.posEmbed}

	for _, block := range m.blocks {
		params = append(params,
			block.attn.wq, block.attn.wk, block.attn.wv, block.attn.wo,
			block.ln1.gamma, block.ln1.beta,
			block.ff.w1, block.ff.b1, block.ff.w2, block.ff.b2,
			block.ln2.gamma, block.ln2.beta,
		)
	}

	params = append(params, m.lnFinal.gamma, m.lnFinal.beta, m.clsW, m.clsB)
	return params
}

// NumParameters counts the total learnable parameter elements.
func (m *SentimentEncoder) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Size()
	}
	return total
}

// addBias adds a bias vector to each row of a 2D tensor.
func addBias(x, bias *Tensor) *Tensor {
	if len(x.shape) != 2 || len(bias.shape) != 1 || x.shape[1] != bias.shape[0] {
		panic("encoder: addBias shape mismatch")
	}

	out := x.Clone()
	rows, features := x.shape[0], x.shape[1]
	for r := 0; r < rows; r++ {
		for f := 0; f < features; f++ {
			out.data[r*features+f] += bias.data[f]
		}
	}
	return out
}
