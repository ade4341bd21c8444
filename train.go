package main

import (
	"fmt"
	"math"
	"time"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// The fine-tuning loop: AdamW optimization, a linear learning-rate schedule,
// and an epoch driver with validation-based checkpointing and early stopping.
//
// Per batch:
//
//	1. Zero every parameter gradient.
//	2. For each example: cached forward pass, cross-entropy loss, backward
//	   pass with the logit gradient scaled by 1/batchSize. Per-example
//	   gradients accumulate, so after the loop each grad buffer holds the
//	   batch-mean gradient.
//	3. One AdamW step at the scheduler's current learning rate.
//
// Per epoch: a full shuffled pass over training batches, then a no-gradient
// pass over validation. If validation loss improved on the best seen so far,
// the model is checkpointed; otherwise a patience counter ticks up, and when
// it reaches the limit training stops early. Only the best model is ever on
// disk.
//
// AdamW rather than Adam: weight decay is applied directly to the weights,
// decoupled from the gradient moments, so decay strength does not get
// rescaled by the adaptive step size.
//
// ===========================================================================

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Step applies one update at the given learning rate.
	Step(params []*Tensor, lr float64)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad(params []*Tensor)
}

// AdamWOptimizer implements Adam with decoupled weight decay.
//
// Moment buffers are allocated lazily on the first Step so the optimizer can
// be constructed before the model.
type AdamWOptimizer struct {
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64

	m [][]float64 // first moment per parameter tensor
	v [][]float64 // second moment per parameter tensor
	t int         // step count, for bias correction
}

// NewAdamWOptimizer creates an AdamW optimizer with the standard moment
// decay rates.
func NewAdamWOptimizer(weightDecay float64) *AdamWOptimizer {
	return &AdamWOptimizer{
		beta1:       0.9,
		beta2:       0.999,
		epsilon:     1e-8,
		weightDecay: weightDecay,
	}
}

// Step applies one AdamW update. The decay term uses the raw weight, not the
// gradient, which is what separates AdamW from Adam with L2 regularization.
func (opt *AdamWOptimizer) Step(params []*Tensor, lr float64) {
	if opt.m == nil {
		opt.m = make([][]float64, len(params))
		opt.v = make([][]float64, len(params))
		for i, p := range params {
			opt.m[i] = make([]float64, p.Size())
			opt.v[i] = make([]float64, p.Size())
		}
	}
	if len(opt.m) != len(params) {
		panic(fmt.Sprintf("train: optimizer saw %d params, now %d", len(opt.m), len(params)))
	}

	opt.t++
	bc1 := 1.0 - math.Pow(opt.beta1, float64(opt.t))
	bc2 := 1.0 - math.Pow(opt.beta2, float64(opt.t))

	for i, p := range params {
		m := opt.m[i]
		v := opt.v[i]
		for j := range p.data {
			g := p.grad[j]

			m[j] = opt.beta1*m[j] + (1.0-opt.beta1)*g
			v[j] = opt.beta2*v[j] + (1.0-opt.beta2)*g*g

			mHat := m[j] / bc1
			vHat := v[j] / bc2

			p.data[j] -= lr * (mHat/(math.Sqrt(vHat)+opt.epsilon) + opt.weightDecay*p.data[j])
		}
	}
}

// ZeroGrad clears all parameter gradients.
func (opt *AdamWOptimizer) ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// LinearScheduler decays the learning rate linearly from the base rate to
// zero over totalSteps, with an optional linear warmup from zero first.
// Fine-tuning here uses zero warmup; the field exists for longer runs.
type LinearScheduler struct {
	baseLR      float64
	warmupSteps int
	totalSteps  int
}

// NewLinearScheduler creates a schedule over totalSteps optimizer steps.
func NewLinearScheduler(baseLR float64, warmupSteps, totalSteps int) *LinearScheduler {
	return &LinearScheduler{
		baseLR:      baseLR,
		warmupSteps: warmupSteps,
		totalSteps:  totalSteps,
	}
}

// LR returns the learning rate for a given zero-based step index.
func (s *LinearScheduler) LR(step int) float64 {
	if s.warmupSteps > 0 && step < s.warmupSteps {
		return s.baseLR * float64(step+1) / float64(s.warmupSteps)
	}
	if step >= s.totalSteps {
		return 0
	}
	remaining := float64(s.totalSteps-step) / float64(s.totalSteps-s.warmupSteps)
	return s.baseLR * remaining
}

// TrainingConfig collects every knob of a fine-tuning run.
type TrainingConfig struct {
	LearningRate   float64 // peak learning rate (linear decay to zero)
	WeightDecay    float64 // AdamW decoupled decay coefficient
	BatchSize      int
	Epochs         int
	Patience       int // epochs without validation improvement before stopping
	WarmupSteps    int
	Seed           int64  // shuffle seed for the training batch order
	CheckpointPath string // where the best model is saved
}

// DefaultTrainingConfig returns the standard fine-tuning hyperparameters.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		LearningRate:   5e-5,
		WeightDecay:    0.01,
		BatchSize:      8,
		Epochs:         5,
		Patience:       2,
		WarmupSteps:    0,
		Seed:           42,
		CheckpointPath: "best_model.bin",
	}
}

func (c TrainingConfig) validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("train: learning rate must be positive, got %g", c.LearningRate)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("train: weight decay must be non-negative, got %g", c.WeightDecay)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("train: batch size must be positive, got %d", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("train: epochs must be positive, got %d", c.Epochs)
	}
	if c.Patience < 0 {
		return fmt.Errorf("train: patience must be non-negative, got %d", c.Patience)
	}
	if c.WarmupSteps < 0 {
		return fmt.Errorf("train: warmup steps must be non-negative, got %d", c.WarmupSteps)
	}
	if c.CheckpointPath == "" {
		return fmt.Errorf("train: checkpoint path must not be empty")
	}
	return nil
}

// EpochResult records one epoch's outcome.
type EpochResult struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
	Metrics   Metrics
	Improved  bool
	Duration  time.Duration
}

// TrainResult summarizes a completed (or early-stopped) run.
type TrainResult struct {
	Epochs       []EpochResult
	BestValLoss  float64
	BestEpoch    int
	StoppedEarly bool
}

// Trainer drives fine-tuning of one model over one train/validation split.
type Trainer struct {
	model     *SentimentEncoder
	config    TrainingConfig
	optimizer Optimizer
	scheduler *LinearScheduler
	step      int
}

// NewTrainer validates the configuration and prepares the optimizer and
// schedule. totalSteps is epochs times batches per epoch, so the learning
// rate reaches zero exactly at the end of the final planned epoch.
func NewTrainer(model *SentimentEncoder, config TrainingConfig, batchesPerEpoch int) (*Trainer, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if batchesPerEpoch <= 0 {
		return nil, fmt.Errorf("train: batches per epoch must be positive, got %d", batchesPerEpoch)
	}

	totalSteps := config.Epochs * batchesPerEpoch
	if config.WarmupSteps >= totalSteps {
		return nil, fmt.Errorf("train: warmup (%d steps) covers the whole run (%d steps)", config.WarmupSteps, totalSteps)
	}

	return &Trainer{
		model:     model,
		config:    config,
		optimizer: NewAdamWOptimizer(config.WeightDecay),
		scheduler: NewLinearScheduler(config.LearningRate, config.WarmupSteps, totalSteps),
	}, nil
}

// TrainBatch runs one optimization step over a batch and returns the batch's
// mean loss.
func (tr *Trainer) TrainBatch(batch Batch) (float64, error) {
	params := tr.model.Parameters()
	tr.optimizer.ZeroGrad(params)

	batchSize := batch.Size()
	totalLoss := 0.0

	for i := 0; i < batchSize; i++ {
		logits, cache := tr.model.ForwardWithCache(batch.InputIDs[i], batch.AttentionMask[i])
		target := []int{batch.Labels[i]}

		loss := CrossEntropyLoss(logits, target)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return 0, fmt.Errorf("train: non-finite loss at step %d, aborting", tr.step)
		}
		totalLoss += loss

		// Scale per-example logit gradients by 1/batchSize so the
		// accumulated gradient is the batch mean, matching the loss.
		gradLogits := Scale(CrossEntropyBackward(logits, target), 1.0/float64(batchSize))
		tr.model.Backward(gradLogits, cache)
	}

	lr := tr.scheduler.LR(tr.step)
	tr.optimizer.Step(params, lr)
	tr.step++

	return totalLoss / float64(batchSize), nil
}

// CurrentLR returns the learning rate the next TrainBatch call will use.
func (tr *Trainer) CurrentLR() float64 {
	return tr.scheduler.LR(tr.step)
}

// Run executes the full fine-tuning loop: epochs of training batches, a
// validation pass after each, checkpointing on improvement, and early
// stopping when patience runs out.
func (tr *Trainer) Run(train, validation *BatchSource) (*TrainResult, error) {
	stopper := NewEarlyStopper(tr.config.Patience)
	result := &TrainResult{BestValLoss: math.Inf(1)}

	for epoch := 1; epoch <= tr.config.Epochs; epoch++ {
		start := time.Now()

		train.Reset()
		trainLoss := 0.0
		numBatches := 0
		for {
			batch, ok := train.Next()
			if !ok {
				break
			}
			loss, err := tr.TrainBatch(batch)
			if err != nil {
				return nil, err
			}
			trainLoss += loss
			numBatches++

			if numBatches%50 == 0 {
				fmt.Printf("  epoch %d: batch %d/%d, loss %.4f, lr %.2e\n",
					epoch, numBatches, train.NumBatches(), loss, tr.CurrentLR())
			}
		}
		trainLoss /= float64(numBatches)

		validation.Reset()
		eval, err := Evaluate(tr.model, validation)
		if err != nil {
			return nil, fmt.Errorf("train: validation after epoch %d: %w", epoch, err)
		}
		metrics := ComputeMetrics(eval.Predictions, eval.Labels)

		improved, stop := stopper.Observe(eval.AvgLoss)
		if improved {
			if err := tr.model.Save(tr.config.CheckpointPath); err != nil {
				return nil, fmt.Errorf("train: saving checkpoint: %w", err)
			}
			result.BestValLoss = eval.AvgLoss
			result.BestEpoch = epoch
		}

		result.Epochs = append(result.Epochs, EpochResult{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			ValLoss:   eval.AvgLoss,
			Metrics:   metrics,
			Improved:  improved,
			Duration:  time.Since(start),
		})

		marker := ""
		if improved {
			marker = "  (new best, checkpoint saved)"
		}
		fmt.Printf("Epoch %d/%d: train loss %.4f, val loss %.4f, val acc %.4f, F1 %.4f [%s]%s\n",
			epoch, tr.config.Epochs, trainLoss, eval.AvgLoss,
			metrics.Accuracy, metrics.F1, time.Since(start).Round(time.Second), marker)

		if stop {
			fmt.Printf("Early stopping: no improvement for %d epochs\n", tr.config.Patience)
			result.StoppedEarly = true
			break
		}
	}

	return result, nil
}
