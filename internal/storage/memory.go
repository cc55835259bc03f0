package storage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. State is lost on exit.
type MemoryStore struct {
	mu        sync.Mutex
	data      []byte
	exists    bool
	revision  int
	artifacts map[string]ArtifactInfo
	blobs     map[string][]byte
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]ArtifactInfo),
		blobs:     make(map[string][]byte),
		now:       time.Now,
	}
}

func (s *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exists {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{Data: slices.Clone(s.data), Revision: strconv.Itoa(s.revision)}, nil
}

func (s *MemoryStore) Save(ctx context.Context, data []byte, expectedRevision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !revisionMatches(expectedRevision, strconv.Itoa(s.revision), s.exists) {
		return "", ErrRevisionMismatch
	}
	s.data = slices.Clone(data)
	s.exists = true
	s.revision++
	return strconv.Itoa(s.revision), nil
}

// Reset forgets the stored ledger, as if the operator deleted it.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.data = nil
	s.exists = false
	s.mu.Unlock()
}

func (s *MemoryStore) PutArtifact(ctx context.Context, name string, data []byte) error {
	if !ValidArtifactName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	info, ok := s.artifacts[name]
	if !ok {
		info = ArtifactInfo{Filename: name, Created: now}
	}
	info.Size = int64(len(data))
	info.Modified = now
	s.artifacts[name] = info
	s.blobs[name] = slices.Clone(data)
	return nil
}

func (s *MemoryStore) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]ArtifactInfo, 0, len(s.artifacts))
	for _, info := range s.artifacts {
		infos = append(infos, info)
	}
	sortArtifacts(infos)
	return infos, nil
}

func (s *MemoryStore) GetArtifact(ctx context.Context, name string) ([]byte, error) {
	if !ValidArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
