// Package main provides the mrcqa command: training and inspection of
// reading-comprehension experiments.
//
// Usage:
//
//	mrcqa train <exp_folder> <data> [--force_restart] [--word_rep PATH] [--gpu] [--use_covariance]
//	mrcqa inspect <exp_folder>
//	mrcqa version
package main

import (
	"fmt"
	"io"
	"os"
)

const version = "v0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mrcqa: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}

	switch args[0] {
	case "train":
		return trainCommand(args[1:], stdout, stderr)
	case "inspect":
		return inspectCommand(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "mrcqa %s\n", version)
		return nil
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "mrcqa - reading-comprehension span model trainer")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  train <exp_folder> <data>   Train or resume the experiment in exp_folder")
	fmt.Fprintln(w, "  inspect <exp_folder>        Show the checkpoint of an experiment")
	fmt.Fprintln(w, "  version                     Show version")
}
