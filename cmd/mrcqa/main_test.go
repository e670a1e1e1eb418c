package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out, io.Discard))
	assert.Equal(t, "mrcqa "+version+"\n", out.String())
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"serve"}},
		{"train without data", []string{"train", "exp"}},
		{"train unknown flag", []string{"train", "exp", "data.json", "--cuda"}},
		{"inspect without folder", []string{"inspect"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, io.Discard, io.Discard)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errUsage), err.Error())
		})
	}
}

func TestParseInterleaved(t *testing.T) {
	var f trainFlags
	fs := newTrainFlagSet(&f, io.Discard)

	pos, err := parseInterleaved(fs, []string{"--force_restart", "exp", "data.json", "--word_rep", "glove.txt", "--use_covariance"})
	require.NoError(t, err)

	assert.Equal(t, []string{"exp", "data.json"}, pos)
	assert.True(t, f.forceRestart)
	assert.True(t, f.useCovariance)
	assert.False(t, f.gpu)
	assert.Equal(t, "glove.txt", f.wordRep)
}

func TestParseInterleaved_Help(t *testing.T) {
	var f trainFlags
	_, err := parseInterleaved(newTrainFlagSet(&f, io.Discard), []string{"-h"})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestTrainAndInspect(t *testing.T) {
	root := t.TempDir()
	exp := filepath.Join(root, "exp")
	require.NoError(t, os.MkdirAll(exp, 0o750))

	cfg := `training:
  batch_size: 1
  epochs: 1
bidaf:
  word_dim: 4
  char_dim: 3
  hidden_size: 4
  modeling_size: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(exp, "config.yaml"), []byte(cfg), 0o600))
	data := `{"data":[{"id":"1","passage":"Bob likes tea.","query":"Who likes tea?","answers":[{"text":"Bob"}]}]}`
	dataPath := filepath.Join(root, "data.json")
	require.NoError(t, os.WriteFile(dataPath, []byte(data), 0o600))

	var out bytes.Buffer
	require.NoError(t, run([]string{"train", exp, dataPath, "--gpu"}, &out, io.Discard))
	assert.Contains(t, out.String(), "END OF EPOCH : 0")

	logBytes, err := os.ReadFile(filepath.Join(exp, "train.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logBytes), "Training finished")

	out.Reset()
	require.NoError(t, run([]string{"inspect", exp}, &out, io.Discard))
	report := out.String()
	assert.Contains(t, report, "Completed epoch: 0")
	assert.Contains(t, report, "Optimizer state: valid")
	assert.Contains(t, report, "word_emb.weight")
	assert.Contains(t, report, "exp_avg.word_emb.weight")
}

func TestTrain_MissingConfig(t *testing.T) {
	err := run([]string{"train", t.TempDir(), "data.json"}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
