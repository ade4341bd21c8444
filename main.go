package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) > 1 {
		cmd := os.Args[1]
		switch cmd {
		case "train":
			if err := RunTrainCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "classify":
			if err := RunClassifyCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "serve":
			if err := RunServeCommand(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "help", "-h", "--help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
			printUsage()
			os.Exit(1)
		}
	}

	printUsage()
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  reviewsense [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  train     Fine-tune the sentiment encoder on a labeled review CSV")
	fmt.Println("  classify  Score review text with a trained model")
	fmt.Println("  serve     Run the HTTP demo server")
	fmt.Println("  help      Show this message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  reviewsense train -data reviews.csv -tokenizer tokenizer.json")
	fmt.Println("  reviewsense classify -text \"A wonderful, heartfelt film.\"")
	fmt.Println("  reviewsense classify -interactive")
	fmt.Println("  reviewsense serve -addr :8080")
	fmt.Println()
	fmt.Println("Run 'reviewsense [command] -h' for command options.")
}
