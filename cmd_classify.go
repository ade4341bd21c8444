package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
)

// RunClassifyCommand implements the classify subcommand: score one review
// from the command line, or run an interactive REPL.
func RunClassifyCommand(args []string) error {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)

	modelPath := fs.String("model", "best_model.bin", "Path to a trained checkpoint")
	tokenizerPath := fs.String("tokenizer", "tokenizer.json", "HuggingFace tokenizer file")
	text := fs.String("text", "", "Review text to classify")
	interactive := fs.Bool("interactive", false, "Interactive mode (REPL)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *text == "" && !*interactive {
		return fmt.Errorf("either --text or --interactive is required")
	}

	classifier, err := NewClassifier(*modelPath, *tokenizerPath)
	if err != nil {
		return err
	}

	if *interactive {
		return runClassifyREPL(classifier)
	}

	p, err := classifier.Classify(*text)
	if err != nil {
		return err
	}
	fmt.Println(FormatPrediction(p))
	return nil
}

// runClassifyREPL reads reviews line by line and prints a prediction for
// each. Empty lines are skipped; "quit" or EOF exits.
func runClassifyREPL(classifier *Classifier) error {
	config := classifier.Model().Config()
	fmt.Printf("Sentiment classifier ready (%d parameters, %s)\n",
		classifier.Model().NumParameters(), DescribeCompute())
	fmt.Printf("Model: %d layers, %d embed dim, max %d tokens\n",
		config.NumLayers, config.EmbedDim, config.SeqLen)
	fmt.Println("Type a review and press Enter. \"quit\" exits.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		p, err := classifier.Classify(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(FormatPrediction(p))
	}
	return scanner.Err()
}
