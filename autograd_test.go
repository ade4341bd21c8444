package main

import (
	"math"
	"math/rand"
	"testing"
)

// numericGrad estimates d(loss)/d(x[i]) by central differences.
func numericGrad(x *Tensor, i int, loss func() float64) float64 {
	const h = 1e-5
	orig := x.data[i]

	x.data[i] = orig + h
	up := loss()
	x.data[i] = orig - h
	down := loss()
	x.data[i] = orig

	return (up - down) / (2 * h)
}

func TestMatMulBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	a := NewTensorRand(rng, 1.0, 3, 4)
	b := NewTensorRand(rng, 1.0, 4, 2)

	// Scalar loss: sum of all output elements, so gradC is all ones.
	loss := func() float64 {
		c := MatMul(a, b)
		sum := 0.0
		for _, v := range c.data {
			sum += v
		}
		return sum
	}

	gradC := NewTensor(3, 2)
	for i := range gradC.data {
		gradC.data[i] = 1
	}
	gradA, gradB := MatMulBackward(a, b, gradC)

	for i := range a.data {
		want := numericGrad(a, i, loss)
		if math.Abs(gradA.data[i]-want) > 1e-6 {
			t.Fatalf("gradA[%d] = %g, numeric %g", i, gradA.data[i], want)
		}
	}
	for i := range b.data {
		want := numericGrad(b, i, loss)
		if math.Abs(gradB.data[i]-want) > 1e-6 {
			t.Fatalf("gradB[%d] = %g, numeric %g", i, gradB.data[i], want)
		}
	}
}

func TestGELUBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	x := NewTensorRand(rng, 1.0, 2, 3)

	loss := func() float64 {
		y := GELU(x)
		sum := 0.0
		for _, v := range y.data {
			sum += v
		}
		return sum
	}

	gradY := NewTensor(2, 3)
	for i := range gradY.data {
		gradY.data[i] = 1
	}
	gradX := GELUBackward(x, gradY)

	for i := range x.data {
		want := numericGrad(x, i, loss)
		if math.Abs(gradX.data[i]-want) > 1e-6 {
			t.Fatalf("gradX[%d] = %g, numeric %g", i, gradX.data[i], want)
		}
	}
}

func TestSoftmaxBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	x := NewTensorRand(rng, 1.0, 2, 4)

	// Weighted sum of softmax outputs so the gradient is non-uniform.
	weights := NewTensorRand(rng, 1.0, 2, 4)
	loss := func() float64 {
		y := Softmax(x)
		sum := 0.0
		for i := range y.data {
			sum += y.data[i] * weights.data[i]
		}
		return sum
	}

	y := Softmax(x)
	gradX := SoftmaxBackward(y, weights)

	for i := range x.data {
		want := numericGrad(x, i, loss)
		if math.Abs(gradX.data[i]-want) > 1e-6 {
			t.Fatalf("gradX[%d] = %g, numeric %g", i, gradX.data[i], want)
		}
	}
}

func TestLayerNormBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	x := NewTensorRand(rng, 1.0, 2, 5)

	ln := NewLayerNorm(5)
	for i := range ln.gamma.data {
		ln.gamma.data[i] = 1.0 + 0.1*float64(i)
		ln.beta.data[i] = 0.05 * float64(i)
	}

	weights := NewTensorRand(rng, 1.0, 2, 5)
	loss := func() float64 {
		y := ln.Forward(x)
		sum := 0.0
		for i := range y.data {
			sum += y.data[i] * weights.data[i]
		}
		return sum
	}

	gradX, gradGamma, gradBeta := LayerNormBackward(x, ln.gamma, weights, ln.eps)

	for i := range x.data {
		want := numericGrad(x, i, loss)
		if math.Abs(gradX.data[i]-want) > 1e-5 {
			t.Fatalf("gradX[%d] = %g, numeric %g", i, gradX.data[i], want)
		}
	}
	for i := range ln.gamma.data {
		want := numericGrad(ln.gamma, i, loss)
		if math.Abs(gradGamma.data[i]-want) > 1e-5 {
			t.Fatalf("gradGamma[%d] = %g, numeric %g", i, gradGamma.data[i], want)
		}
	}
	for i := range ln.beta.data {
		want := numericGrad(ln.beta, i, loss)
		if math.Abs(gradBeta.data[i]-want) > 1e-5 {
			t.Fatalf("gradBeta[%d] = %g, numeric %g", i, gradBeta.data[i], want)
		}
	}
}

func TestCrossEntropyLossKnownValues(t *testing.T) {
	// Uniform logits over 2 classes: loss is ln(2).
	logits := NewTensor(1, 2)
	got := CrossEntropyLoss(logits, []int{0})
	if math.Abs(got-math.Log(2)) > 1e-12 {
		t.Errorf("uniform loss = %g, want ln(2) = %g", got, math.Log(2))
	}

	// Strongly confident and correct: loss near zero.
	logits.Set(20, 0, 1)
	got = CrossEntropyLoss(logits, []int{1})
	if got > 1e-6 {
		t.Errorf("confident correct loss = %g, want ~0", got)
	}

	// Strongly confident and wrong: loss near the logit gap.
	got = CrossEntropyLoss(logits, []int{0})
	if math.Abs(got-20) > 1e-6 {
		t.Errorf("confident wrong loss = %g, want ~20", got)
	}
}

func TestCrossEntropyBackwardNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	logits := NewTensorRand(rng, 1.0, 3, 2)
	targets := []int{0, 1, 1}

	loss := func() float64 {
		return CrossEntropyLoss(logits, targets)
	}

	grad := CrossEntropyBackward(logits, targets)
	for i := range logits.data {
		want := numericGrad(logits, i, loss)
		if math.Abs(grad.data[i]-want) > 1e-6 {
			t.Fatalf("grad[%d] = %g, numeric %g", i, grad.data[i], want)
		}
	}
}

func TestAccumulateGrad(t *testing.T) {
	x := NewTensor(2)
	g := NewTensor(2)
	g.data[0] = 1
	g.data[1] = 2

	x.AccumulateGrad(g)
	x.AccumulateGrad(g)

	if x.grad[0] != 2 || x.grad[1] != 4 {
		t.Errorf("expected grads [2 4], got %v", x.grad)
	}
}
