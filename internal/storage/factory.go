package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Type names a storage backend.
type Type string

const (
	TypeFile   Type = "file"
	TypeS3     Type = "s3"
	TypeRedis  Type = "redis"
	TypeMemory Type = "memory"
)

// Config selects and configures the primary backend.
type Config struct {
	Type     Type          `yaml:"type"`
	DataDir  string        `yaml:"data_dir"`
	DataFile string        `yaml:"data_file"`
	Timeout  time.Duration `yaml:"timeout"`
	// Watch reloads the ledger when the data file changes on disk.
	// Only meaningful for the file backend.
	Watch bool        `yaml:"watch"`
	S3    S3Config    `yaml:"s3"`
	Redis RedisConfig `yaml:"redis"`
}

// New builds the backend cfg.Type names. An empty type means file.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	switch cfg.Type {
	case TypeFile, "":
		dir := cfg.DataDir
		if dir == "" {
			dir = "."
		}
		return NewFileStore(dir, cfg.DataFile, log)
	case TypeS3:
		return NewS3Store(ctx, cfg.S3, cfg.DataFile)
	case TypeRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis address is required for redis storage")
		}
		return NewRedisStore(cfg.Redis), nil
	case TypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
