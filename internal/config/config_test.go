package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/babylog",
		LogDir:  "/home/user/.local/share/babylog/log",
		Remote: RemoteConfig{
			BaseID:            "appXYZ",
			Table:             "Events",
			TokenFile:         "/home/user/.local/share/babylog/keys/token.age",
			IdentityPath:      "/home/user/.local/share/babylog/keys/identity.txt",
			RetryDelaySeconds: 5,
			MaxRetries:        3,
		},
		Store:   StoreConfig{Type: "sqlite", DataDir: "/home/user/.local/share/babylog/db"},
		Session: SessionConfig{Type: "memory"},
		Display: DisplayConfig{Timezone: "Europe/Berlin", DayLabelFormat: "Mon Jan 2"},
		Export: ExportConfig{
			Type:     "s3",
			S3Bucket: "family-backups",
			S3Prefix: "babylog/",
			S3Region: "eu-central-1",
		},
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

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Remote != original.Remote {
		t.Errorf("Remote = %+v, want %+v", got.Remote, original.Remote)
	}
	if got.Store != original.Store {
		t.Errorf("Store = %+v, want %+v", got.Store, original.Store)
	}
	if got.Session.Type != "memory" {
		t.Errorf("Session.Type = %q, want %q", got.Session.Type, "memory")
	}
	if got.Display != original.Display {
		t.Errorf("Display = %+v, want %+v", got.Display, original.Display)
	}
	if got.Export != original.Export {
		t.Errorf("Export = %+v, want %+v", got.Export, original.Export)
	}
}

func TestManager_Read_PartialFile(t *testing.T) {
	input := `
base_dir = "/data/babylog"

[remote]
base_id = "appABC"
table = "Log"
token = "pat.secret"

[store]
type = "remote"
`
	m := &Manager{}
	cfg, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Remote.Token != "pat.secret" {
		t.Errorf("Remote.Token = %q, want %q", cfg.Remote.Token, "pat.secret")
	}
	if cfg.Remote.MaxRetries != 0 {
		t.Errorf("Remote.MaxRetries = %d, want 0 when unset", cfg.Remote.MaxRetries)
	}
	if cfg.Session.Type != "" {
		t.Errorf("Session.Type = %q, want empty", cfg.Session.Type)
	}
}

func TestManager_Read_Invalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("base_dir = ")); err == nil {
		t.Fatal("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/babylog")

	if cfg.BaseDir != "/data/babylog" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/babylog")
	}
	if cfg.LogDir != "/data/babylog/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/babylog/log")
	}
	if cfg.Remote.TokenFile != "/data/babylog/keys/token.age" {
		t.Errorf("Remote.TokenFile = %q, want %q", cfg.Remote.TokenFile, "/data/babylog/keys/token.age")
	}
	if cfg.Remote.IdentityPath != "/data/babylog/keys/identity.txt" {
		t.Errorf("Remote.IdentityPath = %q, want %q", cfg.Remote.IdentityPath, "/data/babylog/keys/identity.txt")
	}
	if cfg.Store.Type != "remote" {
		t.Errorf("Store.Type = %q, want %q", cfg.Store.Type, "remote")
	}
	if cfg.Session.Type != "filesystem" || cfg.Session.Dir != "/data/babylog" {
		t.Errorf("Session = %+v, want filesystem at /data/babylog", cfg.Session)
	}
	if cfg.Export.Dir != "/data/babylog/exports" {
		t.Errorf("Export.Dir = %q, want %q", cfg.Export.Dir, "/data/babylog/exports")
	}
}

func TestConfig_Location(t *testing.T) {
	t.Run("empty means local", func(t *testing.T) {
		cfg := NewConfig(t.TempDir())
		loc, err := cfg.Location()
		if err != nil {
			t.Fatalf("Location() error = %v", err)
		}
		if loc != time.Local {
			t.Errorf("Location() = %v, want Local", loc)
		}
	})

	t.Run("named zone", func(t *testing.T) {
		cfg := NewConfig(t.TempDir())
		cfg.Display.Timezone = "UTC"
		loc, err := cfg.Location()
		if err != nil {
			t.Fatalf("Location() error = %v", err)
		}
		if loc.String() != "UTC" {
			t.Errorf("Location() = %v, want UTC", loc)
		}
	})

	t.Run("unknown zone", func(t *testing.T) {
		cfg := NewConfig(t.TempDir())
		cfg.Display.Timezone = "Nowhere/Atlantis"
		if _, err := cfg.Location(); err == nil {
			t.Fatal("Location() expected error for unknown zone")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "babylog.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "babylog.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestWriteToFile_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "babylog.toml")
	cfg := NewConfig(dir)

	if err := WriteToFile(path, cfg); err != nil {
		t.Fatalf("WriteToFile() error = %v", err)
	}
	cfg.Remote.BaseID = "appUpdated"
	if err := WriteToFile(path, cfg); err != nil {
		t.Fatalf("second WriteToFile() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.Remote.BaseID != "appUpdated" {
		t.Errorf("Remote.BaseID = %q, want %q", got.Remote.BaseID, "appUpdated")
	}
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "babylog.toml")
		cfg := NewConfig(dir)
		cfg.Store = StoreConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Store.Type != "memory" {
			t.Errorf("Store.Type = %q, want %q", got.Store.Type, "memory")
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/babylog.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
