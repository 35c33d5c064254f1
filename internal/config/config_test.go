package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		OwnerID: "household-abc",
		BaseDir: "/home/user/.local/share/pantry",
		LogDir:  "/home/user/.local/share/pantry/log",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: "/home/user/.local/share/pantry/db",
		},
		Reconcile: ReconcileConfig{MinConfidence: 0.6, Duplicates: "merge"},
		Staples:   StaplesConfig{StickyOverrides: true},
		Archive: ArchiveConfig{
			Type:       "s3",
			S3Bucket:   "pantry-snapshots",
			S3Prefix:   "home",
			S3Region:   "eu-central-1",
			S3Endpoint: "http://localhost:9000",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/pantry/keys/pantry.pub",
			PrivateKeyPath: "/home/user/.local/share/pantry/keys/pantry.key",
		},
		Metrics: MetricsConfig{TextfilePath: "/var/lib/node_exporter/pantry.prom"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.OwnerID != original.OwnerID {
		t.Errorf("OwnerID = %q, want %q", got.OwnerID, original.OwnerID)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Reconcile != original.Reconcile {
		t.Errorf("Reconcile = %+v, want %+v", got.Reconcile, original.Reconcile)
	}
	if !got.Staples.StickyOverrides {
		t.Error("Staples.StickyOverrides = false, want true")
	}
	if got.Archive != original.Archive {
		t.Errorf("Archive = %+v, want %+v", got.Archive, original.Archive)
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Metrics.TextfilePath != original.Metrics.TextfilePath {
		t.Errorf("Metrics.TextfilePath = %q, want %q", got.Metrics.TextfilePath, original.Metrics.TextfilePath)
	}
}

func TestManager_Read_Partial(t *testing.T) {
	input := `
owner_id = "home"
log_dir = "/tmp/log"

[database]
type = "memory"
`
	m := &Manager{}
	got, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Database.Type != "memory" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
	}
	if got.Reconcile.MinConfidence != 0 {
		t.Errorf("Reconcile.MinConfidence = %v, want 0 (unset)", got.Reconcile.MinConfidence)
	}
	if got.Archive.Type != "" {
		t.Errorf("Archive.Type = %q, want empty", got.Archive.Type)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("household-1", "/data/pantry")

	if cfg.OwnerID != "household-1" {
		t.Errorf("OwnerID = %q, want %q", cfg.OwnerID, "household-1")
	}
	if cfg.LogDir != "/data/pantry/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/pantry/log")
	}
	if cfg.Database.DataDir != "/data/pantry/db" {
		t.Errorf("Database.DataDir = %q, want %q", cfg.Database.DataDir, "/data/pantry/db")
	}
	if cfg.Archive.FSRoot != "/data/pantry/archive" {
		t.Errorf("Archive.FSRoot = %q, want %q", cfg.Archive.FSRoot, "/data/pantry/archive")
	}
	if cfg.Encryption.PublicKeyPath != "/data/pantry/keys/pantry.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/pantry/keys/pantry.pub")
	}
	if cfg.Reconcile.MinConfidence != 0.7 {
		t.Errorf("Reconcile.MinConfidence = %v, want 0.7", cfg.Reconcile.MinConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on default config error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr []string
	}{
		{
			name:   "default config is valid",
			modify: func(*Config) {},
		},
		{
			name:    "missing owner",
			modify:  func(c *Config) { c.OwnerID = "" },
			wantErr: []string{"owner_id"},
		},
		{
			name:    "unknown database type",
			modify:  func(c *Config) { c.Database.Type = "postgres" },
			wantErr: []string{"database.type"},
		},
		{
			name:    "confidence out of range",
			modify:  func(c *Config) { c.Reconcile.MinConfidence = 1.5 },
			wantErr: []string{"min_confidence"},
		},
		{
			name:    "unknown duplicate policy",
			modify:  func(c *Config) { c.Reconcile.Duplicates = "drop" },
			wantErr: []string{"duplicates"},
		},
		{
			name: "s3 without bucket and half credentials",
			modify: func(c *Config) {
				c.Archive = ArchiveConfig{Type: "s3", S3AccessKeyID: "AKIA"}
			},
			wantErr: []string{"s3_bucket", "set together"},
		},
		{
			name:   "no archive and no encryption",
			modify: func(c *Config) { c.Archive.Type = "none"; c.Encryption.Type = "none" },
		},
		{
			name: "problems are reported together",
			modify: func(c *Config) {
				c.OwnerID = ""
				c.Encryption.Type = "rot13"
			},
			wantErr: []string{"owner_id", "encryption.type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("household-1", "/data/pantry")
			tt.modify(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want errors mentioning %v", tt.wantErr)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error = %q, want it to mention %q", err, want)
				}
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pantry.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pantry.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "pantry.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.OwnerID != "read-test" {
			t.Errorf("OwnerID = %q, want %q", got.OwnerID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/pantry.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
