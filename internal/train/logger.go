package train

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogFileName is the append-only progress log inside an experiment folder.
const LogFileName = "train.log"

// Logger writes progress lines to a console stream and to <exp>/train.log.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger opens (or creates) the log file of dir for appending.
func NewLogger(dir string, console io.Writer) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create experiment folder: %w", err)
	}
	//nolint:gosec // G304: log path is inside the experiment folder
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return &Logger{
		Logger: log.New(io.MultiWriter(console, f), "", log.LstdFlags),
		file:   f,
	}, nil
}

// Discard returns a logger that drops every line.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard, "", 0)}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
