package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDocumentKey(t *testing.T) {
	at := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03/SN001.pdf", documentKey("SN001", at))
}

func TestLocalArchiveStore(t *testing.T) {
	dir := t.TempDir()
	archive := NewLocalArchive(dir, zap.NewNop())

	path, err := archive.Store(context.Background(), "SN001", []byte("label bytes"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "label bytes", string(data))
}

func TestLocalArchiveOverwrites(t *testing.T) {
	dir := t.TempDir()
	archive := NewLocalArchive(dir, zap.NewNop())

	first, err := archive.Store(context.Background(), "SN001", []byte("v1"))
	require.NoError(t, err)
	second, err := archive.Store(context.Background(), "SN001", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestNewS3ArchiveValidation(t *testing.T) {
	_, err := NewS3Archive(nil, zap.NewNop())
	assert.Error(t, err)
}
