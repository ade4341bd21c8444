package main

import (
	"fmt"
	"math"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The training path of the sentiment encoder: a forward pass that caches
// every activation the backward pass needs, and the backward pass itself.
//
// Gradient flow, in reverse of the forward order:
//
//	loss -> class logits -> pooled [CLS] state -> final layer norm
//	     -> encoder blocks (MLP then attention, residuals add gradients)
//	     -> token and position embedding rows
//
// Residual connections mean gradients ADD at every skip: the gradient
// arriving at a block's output flows both straight through to the block's
// input and through the block body.
//
// Memory note: one cache holds O(seqLen * embedDim) activations per layer
// plus the per-head attention weights. It is released after the batch, so
// peak memory stays proportional to the batch size, not the dataset.
//
// ===========================================================================

// forwardCache stores the activations from one example's forward pass.
type forwardCache struct {
	inputIDs      []int
	attentionMask []int

	blockCaches []*blockCache

	lnFinalInput *Tensor
	pooled       *Tensor // (1, EmbedDim) first-position state after final LN
}

// blockCache stores activations for one encoder block.
type blockCache struct {
	input     *Tensor // block input (pre-norm residual stream)
	afterAttn *Tensor // residual stream after the attention sub-layer

	attnCache *attentionCache
	ffCache   *ffCache
}

// attentionCache stores activations for one attention sub-layer.
type attentionCache struct {
	input *Tensor // normalized input the projections saw

	q, k, v *Tensor // (seqLen, embedDim) projections

	headWeights []*Tensor // per-head (seqLen, seqLen) post-softmax weights

	concat *Tensor // (seqLen, embedDim) concatenated head outputs
}

// ffCache stores activations for one feed-forward sub-layer.
type ffCache struct {
	input  *Tensor
	preAct *Tensor // before GELU, needed for its gradient
	hidden *Tensor // after GELU
}

// ForwardWithCache runs the encoder over one example and returns the class
// logits plus the activation cache for Backward. inputIDs and attentionMask
// are parallel slices; mask entries are 1 for real tokens and 0 for padding.
func (m *SentimentEncoder) ForwardWithCache(inputIDs, attentionMask []int) (*Tensor, *forwardCache) {
	seqLen := len(inputIDs)
	if seqLen == 0 {
		panic("encoder: empty input sequence")
	}
	if seqLen > m.config.SeqLen {
		panic(fmt.Sprintf("encoder: sequence length %d exceeds maximum %d", seqLen, m.config.SeqLen))
	}
	if len(attentionMask) != seqLen {
		panic(fmt.Sprintf("encoder: mask length %d != sequence length %d", len(attentionMask), seqLen))
	}

	cache := &forwardCache{
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		blockCaches:   make([]*blockCache, m.config.NumLayers),
	}

	// Token embedding lookup plus learned position embeddings.
	embedDim := m.config.EmbedDim
	x := NewTensor(seqLen, embedDim)
	for i, tokenID := range inputIDs {
		if tokenID < 0 || tokenID >= m.config.VocabSize {
			panic(fmt.Sprintf("encoder: token ID %d out of vocabulary range [0,%d)", tokenID, m.config.VocabSize))
		}
		for d := 0; d < embedDim; d++ {
			x.data[i*embedDim+d] = m.tokenEmbed.At(tokenID, d) + m.posEmbed.At(i, d)
		}
	}

	// Encoder blocks, pre-norm:
	//   x = x + Attn(LN1(x))
	//   x = x + FF(LN2(x))
	for layer := 0; layer < m.config.NumLayers; layer++ {
		block := m.blocks[layer]
		bc := &blockCache{}
		cache.blockCaches[layer] = bc

		bc.input = x.Clone()
		normed := block.ln1.Forward(x)
		attnOut, attnCache := block.attn.forwardWithCache(normed, attentionMask)
		bc.attnCache = attnCache
		x = Add(x, attnOut)

		bc.afterAttn = x.Clone()
		normed = block.ln2.Forward(x)
		ffOut, ffCache := block.ff.forwardWithCache(normed)
		bc.ffCache = ffCache
		x = Add(x, ffOut)
	}

	// Final layer norm, then pool the first position ([CLS] slot).
	cache.lnFinalInput = x.Clone()
	h := m.lnFinal.Forward(x)

	pooled := NewTensor(1, embedDim)
	copy(pooled.data, h.data[:embedDim])
	cache.pooled = pooled

	// Classification head: (1, EmbedDim) @ (EmbedDim, NumClasses) + bias.
	logits := addBias(MatMul(pooled, m.clsW), m.clsB)

	return logits, cache
}

// forwardWithCache runs bidirectional multi-head attention, masking [PAD]
// key positions so padding never contributes to any real token's context.
func (a *SelfAttention) forwardWithCache(x *Tensor, attentionMask []int) (*Tensor, *attentionCache) {
	seqLen := x.shape[0]
	embedDim := x.shape[1]

	cache := &attentionCache{
		input:       x.Clone(),
		headWeights: make([]*Tensor, a.numHeads),
	}

	cache.q = MatMul(x, a.wq)
	cache.k = MatMul(x, a.wk)
	cache.v = MatMul(x, a.wv)

	scale := 1.0 / math.Sqrt(float64(a.headDim))

	concat := NewTensor(seqLen, embedDim)
	for h := 0; h < a.numHeads; h++ {
		qHead, kHead, vHead := a.extractHead(cache, seqLen, h)

		// Scores: Q @ K^T / sqrt(headDim), with padded keys pushed to -1e9
		// so softmax assigns them ~zero weight.
		scores := Scale(MatMul(qHead, Transpose(kHead)), scale)
		for i := 0; i < seqLen; i++ {
			for j := 0; j < seqLen; j++ {
				if attentionMask[j] == 0 {
					scores.Set(-1e9, i, j)
				}
			}
		}

		weights := Softmax(scores)
		cache.headWeights[h] = weights

		context := MatMul(weights, vHead)
		for i := 0; i < seqLen; i++ {
			for d := 0; d < a.headDim; d++ {
				concat.data[i*embedDim+h*a.headDim+d] = context.At(i, d)
			}
		}
	}
	cache.concat = concat.Clone()

	return MatMul(concat, a.wo), cache
}

// extractHead slices head h's columns out of the cached Q, K, V projections.
func (a *SelfAttention) extractHead(cache *attentionCache, seqLen, h int) (q, k, v *Tensor) {
	q = NewTensor(seqLen, a.headDim)
	k = NewTensor(seqLen, a.headDim)
	v = NewTensor(seqLen, a.headDim)

	embedDim := a.embedDim
	for i := 0; i < seqLen; i++ {
		base := i*embedDim + h*a.headDim
		copy(q.data[i*a.headDim:(i+1)*a.headDim], cache.q.data[base:base+a.headDim])
		copy(k.data[i*a.headDim:(i+1)*a.headDim], cache.k.data[base:base+a.headDim])
		copy(v.data[i*a.headDim:(i+1)*a.headDim], cache.v.data[base:base+a.headDim])
	}
	return q, k, v
}

// forwardWithCache runs the feed-forward MLP, caching the pre-activation
// values for the GELU gradient.
func (ff *FeedForward) forwardWithCache(x *Tensor) (*Tensor, *ffCache) {
	cache := &ffCache{input: x.Clone()}

	hidden := addBias(MatMul(x, ff.w1), ff.b1)
	cache.preAct = hidden.Clone()

	hidden = GELU(hidden)
	cache.hidden = hidden.Clone()

	return addBias(MatMul(hidden, ff.w2), ff.b2), cache
}

// Backward propagates gradLogits (shape (1, NumClasses)) through the whole
// encoder, accumulating parameter gradients into each tensor's grad buffer.
// Call ZeroGrad on the parameters between batches, not between examples, so
// per-example gradients within a batch accumulate.
func (m *SentimentEncoder) Backward(gradLogits *Tensor, cache *forwardCache) {
	seqLen := len(cache.inputIDs)
	embedDim := m.config.EmbedDim

	// Classification head: logits = pooled @ clsW + clsB.
	gradPooled, gradClsW := MatMulBackward(cache.pooled, m.clsW, gradLogits)
	m.clsW.AccumulateGrad(gradClsW)
	for c := 0; c < NumClasses; c++ {
		m.clsB.grad[c] += gradLogits.At(0, c)
	}

	// Pooling took row 0 of the final hidden states, so only row 0 of the
	// final LN output receives gradient.
	gradH := NewTensor(seqLen, embedDim)
	copy(gradH.data[:embedDim], gradPooled.data)

	gradX, gradGamma, gradBeta := LayerNormBackward(cache.lnFinalInput, m.lnFinal.gamma, gradH, m.lnFinal.eps)
	m.lnFinal.gamma.AccumulateGrad(gradGamma)
	m.lnFinal.beta.AccumulateGrad(gradBeta)

	// Blocks in reverse order.
	for layer := m.config.NumLayers - 1; layer >= 0; layer-- {
		block := m.blocks[layer]
		bc := cache.blockCaches[layer]

		// x_out = x_mid + FF(LN2(x_mid))
		gradNormed := block.ff.backward(gradX, bc.ffCache)
		gradMid, gradGamma2, gradBeta2 := LayerNormBackward(bc.afterAttn, block.ln2.gamma, gradNormed, block.ln2.eps)
		block.ln2.gamma.AccumulateGrad(gradGamma2)
		block.ln2.beta.AccumulateGrad(gradBeta2)
		gradX = Add(gradX, gradMid)

		// x_mid = x_in + Attn(LN1(x_in))
		gradNormed = block.attn.backward(gradX, bc.attnCache)
		gradIn, gradGamma1, gradBeta1 := LayerNormBackward(bc.input, block.ln1.gamma, gradNormed, block.ln1.eps)
		block.ln1.gamma.AccumulateGrad(gradGamma1)
		block.ln1.beta.AccumulateGrad(gradBeta1)
		gradX = Add(gradX, gradIn)
	}

	// Embedding lookups scatter gradients back to the looked-up rows.
	for i, tokenID := range cache.inputIDs {
		for d := 0; d < embedDim; d++ {
			g := gradX.At(i, d)
			m.tokenEmbed.grad[tokenID*embedDim+d] += g
			m.posEmbed.grad[i*embedDim+d] += g
		}
	}
}

// backward propagates through the feed-forward sub-layer and returns the
// gradient with respect to its (normalized) input.
func (ff *FeedForward) backward(gradOut *Tensor, cache *ffCache) *Tensor {
	hiddenDim := ff.b1.Size()
	outDim := ff.b2.Size()

	// Second linear: out = hidden @ w2 + b2.
	gradHidden, gradW2 := MatMulBackward(cache.hidden, ff.w2, gradOut)
	ff.w2.AccumulateGrad(gradW2)
	for i := range gradOut.data {
		ff.b2.grad[i%outDim] += gradOut.data[i]
	}

	// GELU.
	gradPreAct := GELUBackward(cache.preAct, gradHidden)

	// First linear: hidden = x @ w1 + b1.
	gradInput, gradW1 := MatMulBackward(cache.input, ff.w1, gradPreAct)
	ff.w1.AccumulateGrad(gradW1)
	for i := range gradPreAct.data {
		ff.b1.grad[i%hiddenDim] += gradPreAct.data[i]
	}

	return gradInput
}

// backward propagates through multi-head attention and returns the gradient
// with respect to its (normalized) input.
func (a *SelfAttention) backward(gradOut *Tensor, cache *attentionCache) *Tensor {
	seqLen := cache.input.shape[0]
	embedDim := cache.input.shape[1]
	scale := 1.0 / math.Sqrt(float64(a.headDim))

	// Output projection: out = concat @ wo.
	gradConcat, gradWo := MatMulBackward(cache.concat, a.wo, gradOut)
	a.wo.AccumulateGrad(gradWo)

	gradQ := NewTensor(seqLen, embedDim)
	gradK := NewTensor(seqLen, embedDim)
	gradV := NewTensor(seqLen, embedDim)

	for h := 0; h < a.numHeads; h++ {
		qHead, kHead, vHead := a.extractHead(cache, seqLen, h)
		weights := cache.headWeights[h]

		gradContextHead := NewTensor(seqLen, a.headDim)
		for i := 0; i < seqLen; i++ {
			base := i*embedDim + h*a.headDim
			copy(gradContextHead.data[i*a.headDim:(i+1)*a.headDim], gradConcat.data[base:base+a.headDim])
		}

		// context = weights @ V.
		gradWeights, gradVHead := MatMulBackward(weights, vHead, gradContextHead)

		// Softmax over masked scores. Masked keys have ~zero weight, so
		// their score gradient is ~zero and no masking step is needed here.
		gradScores := SoftmaxBackward(weights, gradWeights)
		gradScores = Scale(gradScores, scale)

		// scores_unscaled = Q @ K^T.
		gradQHead, gradKT := MatMulBackward(qHead, Transpose(kHead), gradScores)
		gradKHead := Transpose(gradKT)

		for i := 0; i < seqLen; i++ {
			base := i*embedDim + h*a.headDim
			for d := 0; d < a.headDim; d++ {
				gradQ.data[base+d] = gradQHead.At(i, d)
				gradK.data[base+d] = gradKHead.At(i, d)
				gradV.data[base+d] = gradVHead.At(i, d)
			}
		}
	}

	// The three projections share the same input; gradients add.
	gradInput := NewTensor(seqLen, embedDim)

	gradInputQ, gradWq := MatMulBackward(cache.input, a.wq, gradQ)
	a.wq.AccumulateGrad(gradWq)
	gradInput = Add(gradInput, gradInputQ)

	gradInputK, gradWk := MatMulBackward(cache.input, a.wk, gradK)
	a.wk.AccumulateGrad(gradWk)
	gradInput = Add(gradInput, gradInputK)

	gradInputV, gradWv := MatMulBackward(cache.input, a.wv, gradV)
	a.wv.AccumulateGrad(gradWv)
	gradInput = Add(gradInput, gradInputV)

	return gradInput
}
