package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// LocalArchive stores labels on the local filesystem under a base
// directory. This is the default backend for single-host deployments.
type LocalArchive struct {
	dir    string
	logger *zap.Logger
}

// NewLocalArchive creates a filesystem-backed archive rooted at dir.
func NewLocalArchive(dir string, logger *zap.Logger) *LocalArchive {
	return &LocalArchive{dir: dir, logger: logger}
}

// Store writes the document under dir, creating month subdirectories as
// needed. An existing file for the same order is overwritten so a
// re-download always wins.
func (a *LocalArchive) Store(_ context.Context, orderID string, data []byte) (string, error) {
	path := filepath.Join(a.dir, filepath.FromSlash(documentKey(orderID, time.Now())))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("storage: create archive dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("storage: write label: %w", err)
	}

	a.logger.Debug("Label archived",
		zap.String("order_id", orderID),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}
