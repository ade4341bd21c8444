package main

import (
	"fmt"
	"math"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// Backward (gradient) implementations for every operation the encoder uses
// in its forward pass. Each function receives the gradient flowing back from
// the loss and produces the gradients of that operation's inputs, applying
// the chain rule one step at a time.
//
// The model trains by: forward pass storing activations, cross-entropy loss
// over the two class logits, then these functions walking the network in
// reverse, accumulating parameter gradients into each Tensor's grad buffer.
//
// ===========================================================================

// MatMulBackward computes gradients for C = A @ B.
//
//	gradA = gradC @ B^T
//	gradB = A^T @ gradC
func MatMulBackward(a, b, gradC *Tensor) (gradA, gradB *Tensor) {
	gradA = MatMul(gradC, Transpose(b))
	gradB = MatMul(Transpose(a), gradC)
	return gradA, gradB
}

// GELUBackward computes the gradient of the GELU activation given the
// pre-activation input x and the gradient of the output.
func GELUBackward(x, gradY *Tensor) *Tensor {
	gradX := NewTensor(x.shape...)

	const (
		sqrt2OverPi = 0.7978845608028654
		coeff       = 0.044715
	)

	for i := range x.data {
		v := x.data[i]
		inner := sqrt2OverPi * (v + coeff*v*v*v)
		tanhInner := math.Tanh(inner)

		tanhDeriv := 1.0 - tanhInner*tanhInner
		innerDeriv := sqrt2OverPi * (1.0 + 3.0*coeff*v*v)
		geluDeriv := 0.5*(1.0+tanhInner) + 0.5*v*tanhDeriv*innerDeriv

		gradX.data[i] = gradY.data[i] * geluDeriv
	}
	return gradX
}

// SoftmaxBackward computes the gradient through a row-wise softmax whose
// output was y.
//
//	gradX[i] = y[i] * (gradY[i] - sum_j gradY[j]*y[j])
func SoftmaxBackward(y, gradY *Tensor) *Tensor {
	if len(y.shape) != 2 {
		panic("autograd: SoftmaxBackward requires 2D tensor")
	}

	rows, cols := y.shape[0], y.shape[1]
	gradX := NewTensor(y.shape...)

	for r := 0; r < rows; r++ {
		dot := 0.0
		for c := 0; c < cols; c++ {
			dot += gradY.At(r, c) * y.At(r, c)
		}
		for c := 0; c < cols; c++ {
			gradX.Set(y.At(r, c)*(gradY.At(r, c)-dot), r, c)
		}
	}
	return gradX
}

// LayerNormBackward computes gradients for y = gamma*(x-mean)/std + beta,
// where mean and std are per-row statistics. Returns gradients for the input
// and both learned parameters.
func LayerNormBackward(x, gamma *Tensor, gradY *Tensor, epsilon float64) (gradX, gradGamma, gradBeta *Tensor) {
	if len(x.shape) != 2 {
		panic("autograd: LayerNormBackward requires 2D tensor")
	}

	rows, features := x.shape[0], x.shape[1]
	n := float64(features)

	gradX = NewTensor(x.shape...)
	gradGamma = NewTensor(features)
	gradBeta = NewTensor(features)

	for r := 0; r < rows; r++ {
		mean := 0.0
		for f := 0; f < features; f++ {
			mean += x.At(r, f)
		}
		mean /= n

		variance := 0.0
		for f := 0; f < features; f++ {
			diff := x.At(r, f) - mean
			variance += diff * diff
		}
		variance /= n
		std := math.Sqrt(variance + epsilon)

		for f := 0; f < features; f++ {
			xNorm := (x.At(r, f) - mean) / std
			gradGamma.data[f] += gradY.At(r, f) * xNorm
			gradBeta.data[f] += gradY.At(r, f)
		}

		// Input gradient needs the two row-level sums from the standard
		// layer-norm backward formula.
		sumGrad := 0.0
		sumGradXNorm := 0.0
		for f := 0; f < features; f++ {
			xNorm := (x.At(r, f) - mean) / std
			g := gradY.At(r, f) * gamma.data[f]
			sumGrad += g
			sumGradXNorm += g * xNorm
		}

		for f := 0; f < features; f++ {
			xNorm := (x.At(r, f) - mean) / std
			g := gradY.At(r, f) * gamma.data[f]
			gradX.Set((n*g-sumGrad-xNorm*sumGradXNorm)/(n*std), r, f)
		}
	}

	return gradX, gradGamma, gradBeta
}

// CrossEntropyLoss computes the mean cross-entropy loss for classification.
//
//	logits:  (batch, numClasses) raw scores
//	targets: (batch) class indices
//
// Uses the log-sum-exp trick for numerical stability.
func CrossEntropyLoss(logits *Tensor, targets []int) float64 {
	if len(logits.shape) != 2 {
		panic("autograd: CrossEntropyLoss expects 2D logits")
	}

	batch := logits.shape[0]
	numClasses := logits.shape[1]
	if len(targets) != batch {
		panic(fmt.Sprintf("autograd: target length %d != batch size %d", len(targets), batch))
	}

	total := 0.0
	for b := 0; b < batch; b++ {
		maxLogit := logits.At(b, 0)
		for c := 1; c < numClasses; c++ {
			if v := logits.At(b, c); v > maxLogit {
				maxLogit = v
			}
		}

		sumExp := 0.0
		for c := 0; c < numClasses; c++ {
			sumExp += math.Exp(logits.At(b, c) - maxLogit)
		}
		logSumExp := maxLogit + math.Log(sumExp)

		total += logSumExp - logits.At(b, targets[b])
	}

	return total / float64(batch)
}

// CrossEntropyBackward computes the gradient of the mean cross-entropy loss
// with respect to the logits: softmax(logits) - one_hot(targets), divided by
// the batch size to match the averaged loss.
func CrossEntropyBackward(logits *Tensor, targets []int) *Tensor {
	if len(logits.shape) != 2 {
		panic("autograd: CrossEntropyBackward requires 2D logits")
	}

	batch := logits.shape[0]
	numClasses := logits.shape[1]

	probs := Softmax(logits)
	gradLogits := NewTensor(batch, numClasses)

	for b := 0; b < batch; b++ {
		for c := 0; c < numClasses; c++ {
			g := probs.At(b, c)
			if c == targets[b] {
				g -= 1.0
			}
			gradLogits.Set(g/float64(batch), b, c)
		}
	}
	return gradLogits
}

// AccumulateGrad adds grad into the tensor's gradient buffer. Used whenever
// a parameter contributes to the loss more than once per step.
func (t *Tensor) AccumulateGrad(grad *Tensor) {
	if !shapeEqual(t.shape, grad.shape) {
		panic("autograd: AccumulateGrad shape mismatch")
	}
	for i := range t.grad {
		t.grad[i] += grad.data[i]
	}
}
