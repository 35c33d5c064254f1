package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pantry.
type Config struct {
	OwnerID    string           `toml:"owner_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Reconcile  ReconcileConfig  `toml:"reconcile"`
	Staples    StaplesConfig    `toml:"staples"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// DatabaseConfig represents configuration for the inventory database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ReconcileConfig tunes how observations are turned into review lists.
type ReconcileConfig struct {
	// MinConfidence is the confidence at or above which an observed row is
	// pre-selected. Zero means the built-in default.
	MinConfidence float64 `toml:"min_confidence"`
	Duplicates    string  `toml:"duplicates"` // "keep" (default) or "merge"
}

// StaplesConfig tunes staple analysis.
type StaplesConfig struct {
	// StickyOverrides keeps manual classifications across re-analysis.
	StickyOverrides bool `toml:"sticky_overrides"`
}

// ArchiveConfig represents configuration for the snapshot archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none" (default), "memory", "filesystem" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "none" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// MetricsConfig controls where metrics are exported.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path,omitempty"`
	ListenAddr   string `toml:"listen_addr,omitempty"`
}

// NewConfig creates a new Config with the provided values and defaults for
// everything else.
func NewConfig(ownerID, baseDir string) *Config {
	return &Config{
		OwnerID: ownerID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Reconcile: ReconcileConfig{
			MinConfidence: 0.7,
			Duplicates:    "keep",
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pantry.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pantry.key"),
		},
		Metrics: MetricsConfig{
			ListenAddr: "127.0.0.1:9464",
		},
	}
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error

	if c.OwnerID == "" {
		errs = append(errs, errors.New("owner_id is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database.data_dir is required for type sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.type %q is not one of sqlite, memory", c.Database.Type))
	}

	if c.Reconcile.MinConfidence < 0 || c.Reconcile.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("reconcile.min_confidence %v is outside [0, 1]", c.Reconcile.MinConfidence))
	}
	switch c.Reconcile.Duplicates {
	case "", "keep", "merge":
	default:
		errs = append(errs, fmt.Errorf("reconcile.duplicates %q is not one of keep, merge", c.Reconcile.Duplicates))
	}

	switch c.Archive.Type {
	case "", "none", "memory":
	case "filesystem":
		if c.Archive.FSRoot == "" {
			errs = append(errs, errors.New("archive.fs_root is required for type filesystem"))
		}
	case "s3":
		if c.Archive.S3Bucket == "" {
			errs = append(errs, errors.New("archive.s3_bucket is required for type s3"))
		}
		if (c.Archive.S3AccessKeyID == "") != (c.Archive.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("archive.s3_access_key_id and s3_secret_access_key must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.type %q is not one of none, memory, filesystem, s3", c.Archive.Type))
	}

	switch c.Encryption.Type {
	case "", "age":
		if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
			errs = append(errs, errors.New("encryption key paths are required for type age"))
		}
	case "none", "test":
	default:
		errs = append(errs, fmt.Errorf("encryption.type %q is not one of age, none, test", c.Encryption.Type))
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry archive credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
