package main

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the tensor type that the sentiment encoder is built
// on: a flat float64 buffer with a shape, plus a parallel gradient buffer of
// the same size for backpropagation.
//
// INTENTION:
// Keep the numeric core small and transparent. Every weight matrix, every
// activation, and every gradient in this repo is one of these tensors, so
// the training loop can be read top to bottom without chasing an opaque
// graph engine.
//
// Matrix multiplication is the hot path (attention projections and the
// feed-forward layers are all matmuls), so MatMul shards rows across a
// worker pool when the output is large enough to be worth it. Everything
// else is a straight loop.
//
// ===========================================================================

// Tensor is a multi-dimensional array of float64 values stored in row-major
// order, with a gradient buffer of the same shape.
//
// Tensor is not safe for concurrent mutation. During inference the model's
// tensors are treated as read-only, which is what makes concurrent
// classification calls legal.
type Tensor struct {
	data  []float64
	shape []int
	grad  []float64
}

// NewTensor creates a zero-initialized tensor. Panics on an invalid shape:
// shape errors are programmer bugs, not runtime conditions.
func NewTensor(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}

	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}

	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		data:  make([]float64, size),
		shape: shapeCopy,
		grad:  make([]float64, size),
	}
}

// NewTensorRand creates a tensor initialized from a normal distribution with
// standard deviation scale, drawn from rng. All weight initialization goes
// through an explicit *rand.Rand so a fixed seed reproduces the exact same
// starting model.
func NewTensorRand(rng *rand.Rand, scale float64, shape ...int) *Tensor {
	t := NewTensor(shape...)
	for i := range t.data {
		t.data[i] = rng.NormFloat64() * scale
	}
	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// At returns the element at the given indices. Panics on invalid indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set stores value at the given indices. Panics on invalid indices.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}
	return idx
}

// ZeroGrad clears the gradient buffer. Called between training batches.
func (t *Tensor) ZeroGrad() {
	for i := range t.grad {
		t.grad[i] = 0
	}
}

// Clone creates a deep copy of the tensor, including its gradient.
func (t *Tensor) Clone() *Tensor {
	clone := NewTensor(t.shape...)
	copy(clone.data, t.data)
	copy(clone.grad, t.grad)
	return clone
}

// Reshape returns a view with a different shape sharing the underlying data
// and gradient. The element count must not change.
func (t *Tensor) Reshape(newShape ...int) *Tensor {
	newSize := 1
	for _, dim := range newShape {
		newSize *= dim
	}
	if newSize != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape size %d to %v", len(t.data), newShape))
	}

	shapeCopy := make([]int, len(newShape))
	copy(shapeCopy, newShape)

	return &Tensor{
		data:  t.data,
		shape: shapeCopy,
		grad:  t.grad,
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d)", t.shape, len(t.data))
}

// ===========================================================================
// OPERATIONS
// ===========================================================================

// Add performs element-wise addition. Panics on shape mismatch.
func Add(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot add shapes %v and %v", a.shape, b.shape))
	}

	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}
	return out
}

// Scale multiplies every element by a scalar.
func Scale(a *Tensor, scalar float64) *Tensor {
	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * scalar
	}
	return out
}

// Transpose returns the transpose of a 2D matrix.
func Transpose(a *Tensor) *Tensor {
	if len(a.shape) != 2 {
		panic("tensor: Transpose requires 2D tensor")
	}

	m, n := a.shape[0], a.shape[1]
	out := NewTensor(n, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.data[j*m+i] = a.data[i*n+j]
		}
	}
	return out
}

// MatMul performs matrix multiplication C = A @ B for 2D tensors.
// A: (M, K), B: (K, N), C: (M, N). Rows of the output are sharded across a
// worker pool when the problem is large enough; see hostCompute below.
func MatMul(a, b *Tensor) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic("tensor: MatMul requires 2D tensors")
	}
	m, k := a.shape[0], a.shape[1]
	kb, n := b.shape[0], b.shape[1]
	if k != kb {
		panic(fmt.Sprintf("tensor: MatMul inner dims mismatch %d vs %d", k, kb))
	}

	out := NewTensor(m, n)

	cfg := hostCompute
	if !cfg.shouldParallelize(m * n * k) {
		matmulRows(a, b, out, 0, m, n, k)
		return out
	}

	workers := cfg.numWorkers()
	if workers > m {
		workers = m
	}
	rowsPer := (m + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * rowsPer
		end := start + rowsPer
		if end > m {
			end = m
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			matmulRows(a, b, out, start, end, n, k)
		}(start, end)
	}
	wg.Wait()

	return out
}

// matmulRows computes output rows [start, end). Each worker owns a disjoint
// row range, so no synchronization is needed on the output buffer.
func matmulRows(a, b, out *Tensor, start, end, n, k int) {
	for i := start; i < end; i++ {
		aRow := a.data[i*k : (i+1)*k]
		outRow := out.data[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := b.data[kk*n : (kk+1)*n]
			for j := 0; j < n; j++ {
				outRow[j] += av * bRow[j]
			}
		}
	}
}

// ===========================================================================
// ACTIVATIONS
// ===========================================================================

// GELU applies the Gaussian Error Linear Unit, the activation used in the
// encoder's feed-forward layers.
//
// GELU(x) ~= 0.5 * x * (1 + tanh(sqrt(2/pi) * (x + 0.044715 * x^3)))
func GELU(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)

	const (
		sqrt2OverPi = 0.7978845608028654
		coeff       = 0.044715
	)

	for i := range x.data {
		v := x.data[i]
		inner := sqrt2OverPi * (v + coeff*v*v*v)
		out.data[i] = 0.5 * v * (1.0 + math.Tanh(inner))
	}
	return out
}

// Softmax converts each row of a 2D tensor of logits to probabilities.
// Numerically stable: subtracts the row max before exponentiating.
func Softmax(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: Softmax requires 2D tensor")
	}

	rows, cols := x.shape[0], x.shape[1]
	out := NewTensor(rows, cols)

	for r := 0; r < rows; r++ {
		maxVal := x.At(r, 0)
		for c := 1; c < cols; c++ {
			if v := x.At(r, c); v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for c := 0; c < cols; c++ {
			e := math.Exp(x.At(r, c) - maxVal)
			out.Set(e, r, c)
			sum += e
		}
		for c := 0; c < cols; c++ {
			out.Set(out.At(r, c)/sum, r, c)
		}
	}
	return out
}

// softmaxSlice applies a numerically stable softmax to a plain slice of
// logits. Used on the two class logits at inference time.
func softmaxSlice(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// argmax returns the index of the maximum value, or -1 for an empty slice.
func argmax(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	maxIdx := 0
	for i := 1; i < len(data); i++ {
		if data[i] > data[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ===========================================================================
// HOST COMPUTE PATH
// ===========================================================================
//
// There is no accelerator backend here: all math runs on the host CPU, with
// goroutine-level parallelism inside MatMul as the only concession to speed.
// DescribeCompute lets the CLI tell the user they are on the degraded host
// path rather than silently hiding it.

// ComputeConfig controls the worker pool used by MatMul.
type ComputeConfig struct {
	// MaxWorkers caps the worker count. 0 means runtime.NumCPU().
	MaxWorkers int

	// MinParallelSize is the smallest m*n*k product worth sharding.
	// Below it, goroutine overhead dominates.
	MinParallelSize int
}

// DefaultComputeConfig returns the host configuration used by MatMul.
func DefaultComputeConfig() ComputeConfig {
	return ComputeConfig{
		MaxWorkers:      0,
		MinParallelSize: 64 * 64 * 64,
	}
}

// SingleThreadedConfig disables the worker pool. Useful in tests that want
// bit-for-bit deterministic timing behavior.
func SingleThreadedConfig() ComputeConfig {
	return ComputeConfig{MaxWorkers: 1, MinParallelSize: math.MaxInt}
}

func (c ComputeConfig) numWorkers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return runtime.NumCPU()
}

func (c ComputeConfig) shouldParallelize(size int) bool {
	return c.numWorkers() > 1 && size >= c.MinParallelSize
}

var hostCompute = DefaultComputeConfig()

// SetComputeConfig replaces the global compute configuration. Not safe to
// call while a forward or backward pass is running.
func SetComputeConfig(cfg ComputeConfig) {
	hostCompute = cfg
}

// DescribeCompute reports the active compute path in human terms.
func DescribeCompute() string {
	return fmt.Sprintf("host CPU (%d workers, no accelerator)", hostCompute.numWorkers())
}
