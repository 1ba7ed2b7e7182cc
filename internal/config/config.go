package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for babylog.
type Config struct {
	BaseDir string        `toml:"base_dir"`
	LogDir  string        `toml:"log_dir"`
	Remote  RemoteConfig  `toml:"remote"`
	Store   StoreConfig   `toml:"store"`
	Session SessionConfig `toml:"session"`
	Display DisplayConfig `toml:"display"`
	Export  ExportConfig  `toml:"export"`
}

// RemoteConfig addresses the remote table and holds its credentials.
// The token is either inline (Token) or age-encrypted on disk (TokenFile, IdentityPath).
type RemoteConfig struct {
	APIURL       string `toml:"api_url,omitempty"`
	BaseID       string `toml:"base_id"`
	Table        string `toml:"table"`
	Token        string `toml:"token,omitempty"`
	TokenFile    string `toml:"token_file,omitempty"`
	IdentityPath string `toml:"identity_path,omitempty"`

	RetryDelaySeconds int `toml:"retry_delay_seconds,omitempty"` // defaults to 30
	MaxRetries        int `toml:"max_retries,omitempty"`         // defaults to 2
	TimeoutSeconds    int `toml:"timeout_seconds,omitempty"`     // defaults to 30
}

// StoreConfig selects where records live.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "remote", "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// SessionConfig selects where the feeding timer session is persisted.
type SessionConfig struct {
	Type string `toml:"type"`          // "filesystem" or "memory"
	Dir  string `toml:"dir,omitempty"` // only used for type=filesystem
}

// DisplayConfig controls day boundaries and labels.
type DisplayConfig struct {
	Timezone       string `toml:"timezone,omitempty"`         // IANA name; empty means local time
	DayLabelFormat string `toml:"day_label_format,omitempty"` // Go time layout for history headings
}

// ExportConfig selects the destination of history exports.
type ExportConfig struct {
	Type string `toml:"type"`          // "filesystem" or "s3"
	Dir  string `toml:"dir,omitempty"` // only used for type=filesystem

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// S3Endpoint points at an S3-compatible service instead of AWS.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// Static keys; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default backends.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Remote: RemoteConfig{
			Table:        "Events",
			TokenFile:    filepath.Join(baseDir, "keys", "token.age"),
			IdentityPath: filepath.Join(baseDir, "keys", "identity.txt"),
		},
		Store: StoreConfig{Type: "remote"},
		Session: SessionConfig{
			Type: "filesystem",
			Dir:  baseDir,
		},
		Export: ExportConfig{
			Type: "filesystem",
			Dir:  filepath.Join(baseDir, "exports"),
		},
	}
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Display.Timezone, err)
	}
	return loc, nil
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

// WriteToFile writes a Config to the specified file path, replacing it.
// The file may hold a token, so it is created with mode 0600.
func WriteToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
