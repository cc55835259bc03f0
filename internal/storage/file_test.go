package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStoreContract(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "", zap.NewNop())
	require.NoError(t, err)
	testStoreContract(t, s, 10*time.Millisecond)
}

func TestFileStoreBackupAndAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "ledger.json", nil)
	require.NoError(t, err)
	ctx := context.Background()

	rev, err := s.Save(ctx, []byte("v1"), "")
	require.NoError(t, err)
	_, err = s.Save(ctx, []byte("v2"), rev)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	backup, err := os.ReadFile(filepath.Join(dir, "ledger.json"+BackupSuffix))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(backup))

	_, err = os.Stat(filepath.Join(dir, "ledger.json"+TmpSuffix))
	assert.ErrorIs(t, err, os.ErrNotExist, "temp file must not linger")
}

func TestFileStoreSeesExternalEdits(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	rev, err := s.Save(ctx, []byte("{}"), "")
	require.NoError(t, err)

	// an operator edits the file by hand
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"x":[]}`), 0644))

	_, err = s.Save(ctx, []byte("{}"), rev)
	assert.ErrorIs(t, err, ErrRevisionMismatch)

	// and deletes it
	require.NoError(t, os.Remove(s.Path()))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Save(ctx, []byte("{}"), "")
	assert.NoError(t, err)
}

func TestFileStoreIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Save(ctx, []byte("{}"), "")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.csv"), 0755))
	require.NoError(t, s.PutArtifact(ctx, "export.csv", []byte("x")))

	infos, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "export.csv", infos[0].Filename)
	assert.Equal(t, infos[0].Modified, infos[0].Created)
}

func TestFileStoreCanceledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, []byte("{}"), "")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
