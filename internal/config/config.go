package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Sink      SinkConfig      `yaml:"sink" toml:"sink"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	Inbox     InboxConfig     `yaml:"inbox" toml:"inbox"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" toml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" toml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" toml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" toml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" toml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	LockPath     string        `yaml:"lock_path" toml:"lock_path" envconfig:"SERVER_LOCK_PATH"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" envconfig:"LOG_FORMAT"` // auto, json, text
}

// StorageConfig holds upload spooling configuration.
type StorageConfig struct {
	TempPath      string `yaml:"temp_path" toml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
	MaxUploadSize int64  `yaml:"max_upload_size" toml:"max_upload_size" envconfig:"MAX_UPLOAD_SIZE"`
}

// WorkspaceConfig controls the initial workspace and naming.
type WorkspaceConfig struct {
	DefaultFolders    []string `yaml:"default_folders" toml:"default_folders" envconfig:"DEFAULT_FOLDERS"`
	PlaceholderName   string   `yaml:"placeholder_name" toml:"placeholder_name" envconfig:"PLACEHOLDER_NAME"`
	FallbackExtension string   `yaml:"fallback_extension" toml:"fallback_extension" envconfig:"FALLBACK_EXTENSION"`
}

// Sink kinds.
const (
	SinkDesktop = "desktop"
	SinkS3      = "s3"
)

// SinkConfig selects where finished archives go.
type SinkConfig struct {
	Kind            string   `yaml:"kind" toml:"kind" envconfig:"SINK_KIND"`
	DesktopDir      string   `yaml:"desktop_dir" toml:"desktop_dir" envconfig:"DESKTOP_DIR"`
	EncryptPassword string   `yaml:"encrypt_password" toml:"encrypt_password" envconfig:"ENCRYPT_PASSWORD"`
	S3              S3Config `yaml:"s3" toml:"s3"`
}

// S3Config holds bucket settings for the s3 sink.
type S3Config struct {
	Endpoint     string        `yaml:"endpoint" toml:"endpoint" envconfig:"S3_ENDPOINT"`
	Region       string        `yaml:"region" toml:"region" envconfig:"S3_REGION"`
	Bucket       string        `yaml:"bucket" toml:"bucket" envconfig:"S3_BUCKET"`
	Prefix       string        `yaml:"prefix" toml:"prefix" envconfig:"S3_PREFIX"`
	AccessKey    string        `yaml:"access_key" toml:"access_key" envconfig:"S3_ACCESS_KEY"`
	SecretKey    string        `yaml:"secret_key" toml:"secret_key" envconfig:"S3_SECRET_KEY"`
	UsePathStyle bool          `yaml:"use_path_style" toml:"use_path_style" envconfig:"S3_USE_PATH_STYLE"`
	MaxElapsed   time.Duration `yaml:"max_elapsed" toml:"max_elapsed" envconfig:"S3_MAX_ELAPSED"`
}

// HistoryConfig controls export history. An empty SQLitePath keeps history
// in memory only.
type HistoryConfig struct {
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path" envconfig:"HISTORY_SQLITE_PATH"`
	Size       int    `yaml:"size" toml:"size" envconfig:"HISTORY_SIZE"`
}

// InboxConfig enables the watched drop directory.
type InboxConfig struct {
	Dir    string        `yaml:"dir" toml:"dir" envconfig:"INBOX_DIR"`
	Settle time.Duration `yaml:"settle" toml:"settle" envconfig:"INBOX_SETTLE"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         9848,
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 5 * time.Minute,
			LockPath:     filepath.Join(os.TempDir(), "dispatcher.lock"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Storage: StorageConfig{
			TempPath:      filepath.Join(os.TempDir(), "dispatcher"),
			MaxUploadSize: 5 << 30, // 5GB
		},
		Workspace: WorkspaceConfig{
			DefaultFolders:    []string{"A_Melo", "B_Melo", "Chorus"},
			PlaceholderName:   "New Folder",
			FallbackExtension: "mp4",
		},
		Sink: SinkConfig{
			Kind: SinkDesktop,
			S3: S3Config{
				MaxElapsed: time.Minute,
			},
		},
		History: HistoryConfig{
			Size: 100,
		},
		Inbox: InboxConfig{
			Settle: 2 * time.Second,
		},
	}
}

// Load reads configuration from file and environment variables. Defaults
// are overridden by the file, and the file by the environment. Files
// ending in .toml are parsed as TOML, anything else as YAML.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(configPath, data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) normalize() error {
	var err error
	for _, p := range []*string{&c.Storage.TempPath, &c.Sink.DesktopDir, &c.History.SQLitePath, &c.Inbox.Dir, &c.Server.LockPath} {
		if *p, err = ExpandPath(*p); err != nil {
			return err
		}
	}
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Workspace.FallbackExtension = strings.TrimPrefix(strings.TrimSpace(c.Workspace.FallbackExtension), ".")
	return nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Storage.MaxUploadSize < 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must not be negative")
	}

	ext := c.Workspace.FallbackExtension
	if ext == "" || strings.ContainsAny(ext, `./\`) {
		return fmt.Errorf("FALLBACK_EXTENSION %q is invalid", ext)
	}

	switch c.Sink.Kind {
	case SinkDesktop:
	case SinkS3:
		if c.Sink.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 sink")
		}
	default:
		return fmt.Errorf("SINK_KIND must be %q or %q, got %q", SinkDesktop, SinkS3, c.Sink.Kind)
	}

	switch c.Log.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be auto, json or text, got %q", c.Log.Format)
	}

	if c.History.Size < 0 {
		return fmt.Errorf("HISTORY_SIZE must not be negative")
	}
	return nil
}

// SlogLevel parses Level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	if p[1] == '/' || p[1] == '\\' {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
