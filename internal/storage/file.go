package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps the ledger as a JSON file and CSV artifacts as files in
// the same directory.
type FileStore struct {
	dir  string
	path string
	log  *zap.Logger

	mu sync.Mutex
}

// NewFileStore creates dir if needed and stores the ledger at dir/file.
func NewFileStore(dir, file string, log *zap.Logger) (*FileStore, error) {
	if file == "" {
		file = DefaultDataFile
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, file),
		log:  log,
	}, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the ledger file.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Data: data, Revision: ContentRevision(data)}, nil
}

func (s *FileStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Save writes the ledger file, keeping the previous version as a backup.
func (s *FileStore) Save(ctx context.Context, data []byte, expectedRevision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if !revisionMatches(expectedRevision, ContentRevision(current), exists) {
		return "", ErrRevisionMismatch
	}

	// Create backup
	if exists {
		if err := os.WriteFile(s.path+BackupSuffix, current, FilePermissions); err != nil {
			s.log.Warn("failed to create backup", zap.String("path", s.path), zap.Error(err))
		}
	}

	if err := writeAtomic(s.path, data); err != nil {
		return "", err
	}
	return ContentRevision(data), nil
}

// PutArtifact writes name into the data directory.
func (s *FileStore) PutArtifact(ctx context.Context, name string, data []byte) error {
	if !ValidArtifactName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return writeAtomic(filepath.Join(s.dir, name), data)
}

// ListArtifacts lists the CSV files in the data directory, newest first.
// Creation time is not portable across filesystems, so Created reports the
// modification time.
func (s *FileStore) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}

	infos := []ArtifactInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		infos = append(infos, ArtifactInfo{
			Filename: entry.Name(),
			Size:     fi.Size(),
			Created:  fi.ModTime(),
			Modified: fi.ModTime(),
		})
	}
	sortArtifacts(infos)
	return infos, nil
}

// GetArtifact reads a CSV file from the data directory.
func (s *FileStore) GetArtifact(ctx context.Context, name string) ([]byte, error) {
	if !ValidArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

// writeAtomic writes to a temp file first and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmpFile := path + TmpSuffix
	if err := os.WriteFile(tmpFile, data, FilePermissions); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}
	return nil
}
