package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/mrcqa/internal/backend/cpu"
	"github.com/born-ml/mrcqa/internal/backend/webgpu"
	"github.com/born-ml/mrcqa/internal/checkpoint"
	"github.com/born-ml/mrcqa/internal/config"
	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/train"
)

var errUsage = errors.New("usage error")

type trainFlags struct {
	forceRestart  bool
	wordRep       string
	gpu           bool
	useCovariance bool
}

func newTrainFlagSet(f *trainFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&f.forceRestart, "force_restart", false, "Ignore any checkpoint and start over")
	fs.StringVar(&f.wordRep, "word_rep", "", "Text file of pre-trained word representations")
	fs.BoolVar(&f.gpu, "gpu", false, "Run matrix products on the GPU when WebGPU is available")
	fs.BoolVar(&f.useCovariance, "use_covariance", false,
		"Use the full covariance matrix when generating random word representations")
	return fs
}

// parseInterleaved parses flags that may appear before, between or after
// positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func trainCommand(args []string, stdout, stderr io.Writer) error {
	var f trainFlags
	fs := newTrainFlagSet(&f, stderr)
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if len(positional) != 2 {
		return fmt.Errorf("%w: train needs <exp_folder> <data>, got %d arguments", errUsage, len(positional))
	}
	expDir, dataPath := positional[0], positional[1]

	cfg, err := config.Load(expDir)
	if err != nil {
		return err
	}

	logger, err := train.NewLogger(expDir, stdout)
	if err != nil {
		return err
	}
	defer logger.Close()

	backend, release := selectBackend(f.gpu, logger)
	defer release()

	trainer, err := train.New(cfg, train.Options{
		ExpDir:        expDir,
		DataPath:      dataPath,
		ForceRestart:  f.forceRestart,
		WordRep:       f.wordRep,
		UseCovariance: f.useCovariance,
	}, backend, logger)
	if err != nil {
		return err
	}
	if err := trainer.Run(); err != nil {
		logger.Printf("Training stopped: %v", err)
		return err
	}
	logger.Println("Training finished")
	return nil
}

// selectBackend returns the WebGPU backend when requested and available,
// the CPU backend otherwise.
func selectBackend(gpu bool, logger *train.Logger) (tensor.Backend, func()) {
	if gpu {
		b, err := webgpu.New()
		if err == nil {
			logger.Println("Using WebGPU backend")
			return b, b.Release
		}
		logger.Printf("GPU requested but unavailable (%v), using CPU", err)
	}
	return cpu.New(), func() {}
}

func inspectCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: inspect needs <exp_folder>", errUsage)
	}

	store := checkpoint.NewStore(fs.Arg(0))
	rec, err := store.Load()
	if err != nil {
		return err
	}
	return printRecord(stdout, store.Path(), rec)
}

func printRecord(w io.Writer, path string, rec *checkpoint.Record) error {
	fmt.Fprintf(w, "Checkpoint: %s\n", path)
	if rec.Training == nil {
		fmt.Fprintln(w, "Completed epoch: none (vocabulary only)")
	} else {
		fmt.Fprintf(w, "Completed epoch: %d\n", rec.Training.Epoch)
		fmt.Fprintf(w, "Optimizer steps: %d\n", rec.Training.Step)
		fmt.Fprintf(w, "Epoch loss: %.4f\n", rec.Training.Loss)
	}
	fmt.Fprintf(w, "Vocabulary: %d words, %d characters\n", rec.Words.Len(), rec.Chars.Len())

	status := rec.Optimizer.Status.String()
	if rec.Optimizer.Err != nil {
		status += " (" + rec.Optimizer.Err.Error() + ")"
	}
	fmt.Fprintf(w, "Optimizer state: %s\n", status)

	if len(rec.Tensors) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tTENSOR\tSHAPE\tBYTES")
	for _, t := range rec.Tensors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.Section, t.Name, formatShape(t.Shape), t.Size)
	}
	return tw.Flush()
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
