package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
	"github.com/klabast/wb-services/signup-calendar/internal/mirror"
	"github.com/klabast/wb-services/signup-calendar/internal/storage"
)

// Constants
const (
	DefaultPort    = 3000
	DefaultTimeout = 10 * time.Second

	// Error messages
	ErrInvalidBody          = "Invalid request body"
	ErrNameExists           = "Name already exists for this date"
	ErrFailedToRead         = "Failed to read calendar data"
	ErrFailedToAdd          = "Failed to add attendee"
	ErrFailedToWriteCSV     = "Failed to write CSV file"
	ErrFailedToListCSV      = "Failed to list CSV files"
	ErrFailedToDownload     = "Failed to download data"
	ErrFileNotFound         = "File not found"
	ErrInvalidFilename      = "Invalid filename"
	ErrNotFound             = "Not found"
	ErrInternalServer       = "Internal server error"
	ErrUnauthorized         = "Unauthorized"
	ErrTooManyRequests      = "Too many signups, please try again shortly"
	ErrFailedToGenerateJSON = "Failed to generate JSON"

	// Mode strings
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config is the complete runtime configuration.
type Config struct {
	Port           int              `yaml:"port"`
	Storage        storage.Config   `yaml:"storage"`
	Remote         storage.S3Config `yaml:"remote"`
	Signup         SignupConfig     `yaml:"signup"`
	RateLimit      RateLimitConfig  `yaml:"rate_limit"`
	AuthFile       string           `yaml:"auth_file"`
	CORSOrigins    []string         `yaml:"cors_origins"`
	ArtifactPrefix string           `yaml:"artifact_prefix"`
	Log            LogConfig        `yaml:"log"`
}

// SignupConfig controls what the ledger accepts.
type SignupConfig struct {
	Weekday         string   `yaml:"weekday"`
	StrictDates     bool     `yaml:"strict_dates"`
	StrictSlots     bool     `yaml:"strict_slots"`
	SlotPreferences []string `yaml:"slot_preferences"`
	FallbackEmpty   bool     `yaml:"fallback_empty"`
}

// RateLimitConfig limits signups per client IP. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig selects the log level and encoding ("json" or "console").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Port: DefaultPort,
		Storage: storage.Config{
			Type:     storage.TypeFile,
			DataDir:  ".",
			DataFile: storage.DefaultDataFile,
			Timeout:  DefaultTimeout,
		},
		Signup: SignupConfig{
			Weekday:         time.Sunday.String(),
			SlotPreferences: append([]string(nil), ledger.DefaultSlotPreferences...),
		},
		RateLimit:      RateLimitConfig{RPS: 1, Burst: 5},
		ArtifactPrefix: mirror.DefaultPrefix,
		Log:            LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// at path, and environment variables, in increasing precedence.
func LoadConfig(path string) (Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfig is LoadConfig without validation, for commands that only need
// part of the configuration.
func ReadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if err := c.ValidateGeneral(); err != nil {
		return err
	}
	return c.ValidateStorage()
}

// ValidateGeneral checks everything except the storage backend.
func (c Config) ValidateGeneral() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if _, err := ledger.ParseWeekday(c.Signup.Weekday); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateStorage checks the storage backend settings.
func (c Config) ValidateStorage() error {
	switch c.Storage.Type {
	case storage.TypeFile, storage.TypeS3, storage.TypeRedis, storage.TypeMemory:
	default:
		return fmt.Errorf("config: unsupported storage type %q", c.Storage.Type)
	}
	if c.Storage.Type == storage.TypeS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("config: S3_BUCKET is required for s3 storage")
	}
	if c.Storage.Type == storage.TypeRedis && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("config: REDIS_ADDR is required for redis storage")
	}
	return nil
}

// RemoteConfigured reports whether CSV exports are mirrored to a remote bucket.
func (c Config) RemoteConfigured() bool {
	return c.Remote.Bucket != ""
}

// Mode names the deployment variant for logs.
func (c Config) Mode() string {
	if c.RemoteConfigured() || c.Storage.Type == storage.TypeS3 || c.Storage.Type == storage.TypeRedis {
		return ModeRemote
	}
	return ModeLocal
}

// Calendar builds the slot calendar from the signup settings.
func (c Config) Calendar() ledger.Calendar {
	wd, err := ledger.ParseWeekday(c.Signup.Weekday)
	if err != nil {
		wd = time.Sunday
	}
	return ledger.Calendar{Weekday: wd, SeasonEnd: ledger.YearEnd}
}

func applyEnv(cfg *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}

	integer("PORT", &cfg.Port)

	storageType := string(cfg.Storage.Type)
	str("STORAGE_TYPE", &storageType)
	cfg.Storage.Type = storage.Type(storageType)
	str("DATA_DIR", &cfg.Storage.DataDir)
	str("DATA_FILE", &cfg.Storage.DataFile)
	duration("STORAGE_TIMEOUT", &cfg.Storage.Timeout)
	boolean("STORAGE_WATCH", &cfg.Storage.Watch)

	str("AWS_REGION", &cfg.Storage.S3.Region)
	str("S3_REGION", &cfg.Storage.S3.Region)
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	str("S3_PREFIX", &cfg.Storage.S3.Prefix)

	str("REDIS_ADDR", &cfg.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	integer("REDIS_DB", &cfg.Storage.Redis.DB)
	str("REDIS_PREFIX", &cfg.Storage.Redis.Prefix)

	str("REMOTE_BUCKET", &cfg.Remote.Bucket)
	str("AWS_REGION", &cfg.Remote.Region)
	str("REMOTE_REGION", &cfg.Remote.Region)
	str("REMOTE_ENDPOINT", &cfg.Remote.Endpoint)
	str("REMOTE_PREFIX", &cfg.Remote.Prefix)

	str("SIGNUP_WEEKDAY", &cfg.Signup.Weekday)
	boolean("STRICT_DATES", &cfg.Signup.StrictDates)
	boolean("STRICT_SLOTS", &cfg.Signup.StrictSlots)
	list("SLOT_PREFERENCES", &cfg.Signup.SlotPreferences)
	boolean("FALLBACK_EMPTY", &cfg.Signup.FallbackEmpty)

	float("RATE_LIMIT_RPS", &cfg.RateLimit.RPS)
	integer("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	str("AUTH_FILE", &cfg.AuthFile)
	list("CORS_ORIGINS", &cfg.CORSOrigins)
	str("ARTIFACT_PREFIX", &cfg.ArtifactPrefix)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
