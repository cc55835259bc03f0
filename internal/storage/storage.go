// Package storage holds the persistence backends for the signup ledger and
// the CSV artifacts derived from it.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultDataFile is the name of the persisted ledger document.
	DefaultDataFile = "calendar-data.json"
	BackupSuffix    = ".backup"
	TmpSuffix       = ".tmp"
	FilePermissions = 0644

	// Unconditional as an expected revision overwrites whatever is stored.
	Unconditional = "*"
)

var (
	// ErrNotFound is returned when no ledger or artifact exists under a name.
	ErrNotFound = errors.New("not found")
	// ErrRevisionMismatch is returned by Save when the stored revision is not
	// the expected one.
	ErrRevisionMismatch = errors.New("revision mismatch")
	// ErrInvalidName is returned for artifact names that are not plain CSV
	// file names.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Snapshot is the persisted ledger document and its revision token.
type Snapshot struct {
	Data     []byte
	Revision string
}

// ArtifactInfo describes a stored CSV export.
type ArtifactInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// Store is a persistence backend.
//
// Save must fail with ErrRevisionMismatch unless expectedRevision is
// Unconditional, equals the stored revision, or is empty and nothing is
// stored yet.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, data []byte, expectedRevision string) (string, error)

	PutArtifact(ctx context.Context, name string, data []byte) error
	ListArtifacts(ctx context.Context) ([]ArtifactInfo, error)
	GetArtifact(ctx context.Context, name string) ([]byte, error)

	Close() error
}

// ValidArtifactName reports whether name is a bare .csv file name.
func ValidArtifactName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".csv")
}

// ContentRevision derives a revision token from the document bytes.
func ContentRevision(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// revisionMatches applies the Save precondition.
func revisionMatches(expected, current string, exists bool) bool {
	switch {
	case expected == Unconditional:
		return true
	case expected == "":
		return !exists
	default:
		return exists && expected == current
	}
}

// sortArtifacts orders newest modification first.
func sortArtifacts(infos []ArtifactInfo) {
	slices.SortFunc(infos, func(a, b ArtifactInfo) int {
		return b.Modified.Compare(a.Modified)
	})
}
