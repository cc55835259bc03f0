package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	testStoreContract(t, NewMemoryStore(), time.Millisecond)
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev, err := s.Save(ctx, []byte("{}"), "")
	require.NoError(t, err)

	s.Reset()
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, []byte("{}"), rev)
	assert.ErrorIs(t, err, ErrRevisionMismatch, "the old revision is gone")
	_, err = s.Save(ctx, []byte("{}"), "")
	assert.NoError(t, err)
}

func TestMemoryStoreKeepsCreatedOnRewrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2025, time.November, 2, 9, 0, 0, 0, time.UTC)
	now := t0
	s.now = func() time.Time { return now }

	require.NoError(t, s.PutArtifact(ctx, "a.csv", []byte("1")))
	now = t0.Add(time.Hour)
	require.NoError(t, s.PutArtifact(ctx, "a.csv", []byte("12")))

	infos, err := s.ListArtifacts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, t0, infos[0].Created)
	assert.Equal(t, now, infos[0].Modified)
	assert.Equal(t, int64(2), infos[0].Size)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("{}")
	_, err := s.Save(ctx, data, "")
	require.NoError(t, err)
	data[0] = 'X'

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(snap.Data))
}
