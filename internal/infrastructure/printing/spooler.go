// Package printing hands shipping labels to the system print spooler.
package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCommand = "lp"
	defaultTimeout = 30 * time.Second
)

// ErrSpoolFailed wraps spooler binary failures.
var ErrSpoolFailed = errors.New("printing: spool failed")

// Printer sends a rendered label to a physical printer.
type Printer interface {
	// Print submits the document for an order. It returns once the job
	// is accepted by the spooler, not when paper comes out.
	Print(ctx context.Context, orderID string, data []byte) error
}

// SpoolerConfig contains configuration for the CUPS spooler handoff
type SpoolerConfig struct {
	// Command is the spooler binary, lp or lpr. If relative, PATH is searched.
	Command string
	// PrinterName selects the queue; empty uses the system default
	PrinterName string
	// Timeout bounds one spooler invocation
	Timeout time.Duration
	// TempDir for the label file handed to the spooler
	TempDir string
}

// Spooler prints labels through the lp command-line tool.
type Spooler struct {
	config *SpoolerConfig
	logger *zap.Logger
}

// NewSpooler creates a spooler-backed printer.
func NewSpooler(config *SpoolerConfig, logger *zap.Logger) (*Spooler, error) {
	if config == nil {
		config = &SpoolerConfig{}
	}
	if config.Command == "" {
		config.Command = defaultCommand
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}

	command, err := resolveBinaryPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("printing: spooler binary not found: %s: %w", config.Command, err)
	}
	config.Command = command

	return &Spooler{config: config, logger: logger}, nil
}

// resolveBinaryPath finds the full path to the binary
func resolveBinaryPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

// Print writes the label to a temp file and submits it to the spooler.
func (s *Spooler) Print(ctx context.Context, orderID string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty document for order %s", ErrSpoolFailed, orderID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	file, err := os.CreateTemp(s.config.TempDir, "label-*.pdf")
	if err != nil {
		return fmt.Errorf("printing: create temp label: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("printing: write temp label: %w", err)
	}
	file.Close()

	args := s.buildArgs(orderID, path)

	s.logger.Debug("Submitting print job",
		zap.String("order_id", orderID),
		zap.String("command", s.config.Command),
		zap.Strings("args", args),
	)

	cmd := exec.CommandContext(ctx, s.config.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: timed out after %v", ErrSpoolFailed, s.config.Timeout)
		}
		s.logger.Error("Print job rejected",
			zap.String("order_id", orderID),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrSpoolFailed, stderr.String())
	}

	s.logger.Info("Print job submitted",
		zap.String("order_id", orderID),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// buildArgs constructs the lp invocation for one label.
func (s *Spooler) buildArgs(orderID, path string) []string {
	args := []string{"-t", "label-" + orderID}
	if s.config.PrinterName != "" {
		args = append(args, "-d", s.config.PrinterName)
	}
	return append(args, path)
}

var _ Printer = (*Spooler)(nil)
