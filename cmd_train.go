package main

import (
	"flag"
	"fmt"
)

// ===========================================================================
// TRAINING CLI
// ===========================================================================
//
// End-to-end fine-tuning from one command: load the review CSV, filter and
// split it, tokenize, train with validation-based checkpointing, and report.
//
// The defaults reproduce the standard run: 3000 examples per split cap,
// batch size 8, 5 epochs, lr 5e-5 with linear decay, patience 2. Every
// random choice is seeded, so two runs with the same flags produce the same
// model.
//
// ===========================================================================

// RunTrainCommand implements the train subcommand.
func RunTrainCommand(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)

	// Model hyperparameters
	numLayers := fs.Int("layers", 2, "Number of encoder layers")
	embedDim := fs.Int("embed", 128, "Embedding dimension")
	numHeads := fs.Int("heads", 4, "Number of attention heads")
	seqLen := fs.Int("seq", 256, "Maximum sequence length")

	// Training hyperparameters
	epochs := fs.Int("epochs", 5, "Number of training epochs")
	batchSize := fs.Int("batch", 8, "Batch size")
	lr := fs.Float64("lr", 5e-5, "Peak learning rate (linear decay to zero)")
	weightDecay := fs.Float64("wd", 0.01, "AdamW weight decay")
	patience := fs.Int("patience", 2, "Epochs without improvement before early stop")
	seed := fs.Int64("seed", 42, "Seed for split, subsample, shuffle, and init")

	// Data
	dataPath := fs.String("data", "reviews.csv", "Labeled review CSV (review,sentiment columns)")
	testPath := fs.String("test-data", "", "Labeled test-split CSV; empty carves test from the holdout")
	subsample := fs.Int("subsample", 3000, "Training examples to keep (0 = all)")
	valSubsample := fs.Int("val-subsample", 3000, "Validation examples to keep (0 = all)")
	testSubsample := fs.Int("test-subsample", 3000, "Test examples to keep (0 = all)")

	// I/O
	tokenizerPath := fs.String("tokenizer", "tokenizer.json", "HuggingFace tokenizer file")
	modelPath := fs.String("model", "best_model.bin", "Checkpoint path for the best model")
	warmStart := fs.String("warm-start", "", "Optional checkpoint to initialize weights from")
	reportPath := fs.String("report", "", "Optional HTML training report path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("===========================================================================")
	fmt.Println("FINE-TUNING A SENTIMENT ENCODER ON MOVIE REVIEWS")
	fmt.Println("===========================================================================")
	fmt.Println()
	fmt.Printf("Model: %d layers, %d embed dim, %d heads, %d seq len\n",
		*numLayers, *embedDim, *numHeads, *seqLen)
	fmt.Printf("Training: %d epochs, batch size %d, lr %.1e, weight decay %.3f, patience %d\n",
		*epochs, *batchSize, *lr, *weightDecay, *patience)
	fmt.Printf("Compute: %s\n", DescribeCompute())
	fmt.Println()

	// Step 1: Load the raw pools
	fmt.Println("Step 1: Loading reviews from", *dataPath)
	raw, err := LoadReviewCSV(*dataPath)
	if err != nil {
		return err
	}
	fmt.Printf("  Loaded %d training-pool reviews\n", len(raw))

	var testPool []Example
	if *testPath != "" {
		if testPool, err = LoadReviewCSV(*testPath); err != nil {
			return err
		}
		fmt.Printf("  Loaded %d test-pool reviews from %s\n", len(testPool), *testPath)
	} else {
		fmt.Println("  No test split given; test partition will be carved from the holdout")
	}
	fmt.Println()

	// Step 2: Filter, split, and subsample into three disjoint partitions
	fmt.Println("Step 2: Preparing train/validation/test partitions")
	parts, err := PreparePartitions(raw, testPool, PartitionConfig{
		MaxWords:      maxReviewWords,
		TrainFraction: 0.8,
		TrainSize:     *subsample,
		ValSize:       *valSubsample,
		TestSize:      *testSubsample,
		Seed:          *seed,
	})
	if err != nil {
		return err
	}
	trainSet, valSet, testSet := parts.Train, parts.Validation, parts.Test
	trainNeg, trainPos := ClassBalance(trainSet)
	valNeg, valPos := ClassBalance(valSet)
	testNeg, testPos := ClassBalance(testSet)
	fmt.Printf("  Train: %d examples (%d negative, %d positive)\n", len(trainSet), trainNeg, trainPos)
	fmt.Printf("  Validation: %d examples (%d negative, %d positive)\n", len(valSet), valNeg, valPos)
	fmt.Printf("  Test: %d examples (%d negative, %d positive)\n", len(testSet), testNeg, testPos)
	fmt.Println()

	// Step 3: Tokenize
	fmt.Println("Step 3: Tokenizing with", *tokenizerPath)
	encoder, err := NewReviewEncoder(*tokenizerPath, *seqLen)
	if err != nil {
		return err
	}
	trainEncoded, err := EncodeDataset(encoder, trainSet)
	if err != nil {
		return err
	}
	valEncoded, err := EncodeDataset(encoder, valSet)
	if err != nil {
		return err
	}
	testEncoded, err := EncodeDataset(encoder, testSet)
	if err != nil {
		return err
	}
	fmt.Printf("  Vocabulary size: %d, fixed length: %d, pad ID: %d\n",
		encoder.VocabSize(), encoder.MaxLength(), encoder.PadID())
	fmt.Println()

	// Step 4: Initialize the model
	fmt.Println("Step 4: Initializing model")
	config := EncoderConfig{
		VocabSize: encoder.VocabSize(),
		SeqLen:    *seqLen,
		EmbedDim:  *embedDim,
		NumHeads:  *numHeads,
		NumLayers: *numLayers,
		FFHidden:  *embedDim * 4,
		PadID:     encoder.PadID(),
	}
	var model *SentimentEncoder
	if *warmStart != "" {
		fmt.Println("  Warm-starting from", *warmStart)
		if model, err = LoadSentimentEncoder(*warmStart); err != nil {
			return err
		}
		if model.Config() != config {
			return fmt.Errorf("warm-start checkpoint config %+v does not match requested %+v", model.Config(), config)
		}
	} else if model, err = NewSentimentEncoder(config, *seed); err != nil {
		return err
	}
	fmt.Printf("  Total parameters: %d\n", model.NumParameters())
	fmt.Println()

	// Step 5: Train
	fmt.Println("Step 5: Training...")
	fmt.Println("-------------------------------------------------------------------")
	// Training drops the final short batch so the step count matches the
	// LR schedule exactly; validation and test keep it so every example is
	// scored once.
	trainSource, err := NewBatchSource(trainEncoded, *batchSize, true, true, *seed)
	if err != nil {
		return err
	}
	valSource, err := NewBatchSource(valEncoded, *batchSize, false, false, *seed)
	if err != nil {
		return err
	}
	testSource, err := NewBatchSource(testEncoded, *batchSize, false, false, *seed)
	if err != nil {
		return err
	}

	trainConfig := TrainingConfig{
		LearningRate:   *lr,
		WeightDecay:    *weightDecay,
		BatchSize:      *batchSize,
		Epochs:         *epochs,
		Patience:       *patience,
		Seed:           *seed,
		CheckpointPath: *modelPath,
	}
	trainer, err := NewTrainer(model, trainConfig, trainSource.NumBatches())
	if err != nil {
		return err
	}
	result, err := trainer.Run(trainSource, valSource)
	if err != nil {
		return err
	}
	fmt.Println("-------------------------------------------------------------------")
	fmt.Println()

	// Step 6: Final evaluation of the best checkpoint on the test partition
	fmt.Println("Step 6: Evaluating best checkpoint on the test partition")
	best, err := LoadSentimentEncoder(*modelPath)
	if err != nil {
		return fmt.Errorf("reloading best checkpoint: %w", err)
	}
	testEval, err := Evaluate(best, testSource)
	if err != nil {
		return err
	}
	testMetrics := ComputeMetrics(testEval.Predictions, testEval.Labels)
	fmt.Printf("  Test loss %.4f, %s\n", testEval.AvgLoss, testMetrics)
	fmt.Println()

	fmt.Printf("Best model: epoch %d, validation loss %.4f, saved to %s\n",
		result.BestEpoch, result.BestValLoss, *modelPath)
	if *reportPath != "" {
		wordCounts := make([]int, len(trainSet))
		for i, ex := range trainSet {
			wordCounts[i] = ex.WordCount
		}
		if err := SaveTrainingReport(*reportPath, result, wordCounts); err != nil {
			return err
		}
		fmt.Println("Training report written to", *reportPath)
	}

	return nil
}
