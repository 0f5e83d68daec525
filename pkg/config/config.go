package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Archive ArchiveConfig `yaml:"archive" json:"archive"`
	Admin   AdminConfig   `yaml:"admin" json:"admin"`
	Ledger  LedgerConfig  `yaml:"ledger" json:"ledger"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	Port            int           `yaml:"port" json:"port"`
	MaxConnections  int           `yaml:"maxConnections" json:"maxConnections"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	IndexPage       string        `yaml:"indexPage" json:"indexPage"`
}

// ArchiveConfig holds everything the archive pipeline reads per request
type ArchiveConfig struct {
	StorageRoot   string        `yaml:"storageRoot" json:"storageRoot"`
	ChunkSize     int           `yaml:"chunkSize" json:"chunkSize"`
	Delay         time.Duration `yaml:"delay" json:"delay"`
	Command       string        `yaml:"command" json:"command"`
	Args          []string      `yaml:"args" json:"args"`
	Extension     string        `yaml:"extension" json:"extension"`
	ContentType   string        `yaml:"contentType" json:"contentType"`
	MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
}

// AdminConfig holds the gRPC health endpoint configuration
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
}

// LedgerConfig holds the transfer ledger configuration. An empty path
// disables the ledger.
type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

const DefaultChunkSize = 512 * 1024

// DefaultConfig Default configuration values
var DefaultConfig = Config{
	Server: ServerConfig{
		Address:         "0.0.0.0",
		Port:            8080,
		MaxConnections:  0,
		ShutdownTimeout: 10 * time.Second,
	},
	Archive: ArchiveConfig{
		StorageRoot:   "./test_photos",
		ChunkSize:     DefaultChunkSize,
		Delay:         0,
		Command:       "zip",
		Args:          []string{"-r", "-", "."},
		Extension:     "zip",
		ContentType:   "application/zip",
		MaxConcurrent: 0,
	},
	Admin: AdminConfig{
		Enabled: false,
		Address: "127.0.0.1",
		Port:    9090,
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stdout",
	},
}

// Default returns a copy of DefaultConfig that does not share slices with it.
func Default() Config {
	cfg := DefaultConfig
	cfg.Archive.Args = append([]string(nil), DefaultConfig.Archive.Args...)
	return cfg
}

// LoadConfig loads configuration from multiple sources in order of precedence.
// The returned path is empty when no config file was found.
//
// 1. Environment variables (highest precedence)
// 2. Configuration file
// 3. Default values (lowest precedence)
func LoadConfig() (*Config, string, error) {
	config := Default()

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if e := loadFromEnv(&config); e != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", e)
	}

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("ZIPSTREAM_CONFIG_PATH"),
		"./config.yaml",
		"./config/config.yaml",
		"/etc/zipstream/config.yaml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if err := decodeFile(path, config); err != nil {
			return "", err
		}

		return path, nil
	}

	return "", nil
}

func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) error {
	if val := os.Getenv("ZIPSTREAM_SERVER_ADDRESS"); val != "" {
		config.Server.Address = val
	}
	if val := os.Getenv("ZIPSTREAM_SERVER_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_SERVER_PORT: %w", err)
		}
		config.Server.Port = port
	}
	if val := os.Getenv("ZIPSTREAM_MAX_CONNECTIONS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_MAX_CONNECTIONS: %w", err)
		}
		config.Server.MaxConnections = n
	}
	if val := os.Getenv("ZIPSTREAM_INDEX_PAGE"); val != "" {
		config.Server.IndexPage = val
	}

	if val := os.Getenv("ZIPSTREAM_STORAGE_ROOT"); val != "" {
		config.Archive.StorageRoot = val
	}
	if val := os.Getenv("ZIPSTREAM_CHUNK_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_CHUNK_SIZE: %w", err)
		}
		config.Archive.ChunkSize = n
	}
	if val := os.Getenv("ZIPSTREAM_DELAY"); val != "" {
		delay, err := parseDelay(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_DELAY: %w", err)
		}
		config.Archive.Delay = delay
	}
	if val := os.Getenv("ZIPSTREAM_ARCHIVE_COMMAND"); val != "" {
		config.Archive.Command = val
	}
	if val := os.Getenv("ZIPSTREAM_ARCHIVE_ARGS"); val != "" {
		config.Archive.Args = strings.Fields(val)
	}
	if val := os.Getenv("ZIPSTREAM_MAX_CONCURRENT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_MAX_CONCURRENT: %w", err)
		}
		config.Archive.MaxConcurrent = n
	}

	if val := os.Getenv("ZIPSTREAM_ADMIN_ENABLED"); val != "" {
		config.Admin.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv("ZIPSTREAM_ADMIN_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ZIPSTREAM_ADMIN_PORT: %w", err)
		}
		config.Admin.Port = port
	}

	if val := os.Getenv("ZIPSTREAM_LEDGER_PATH"); val != "" {
		config.Ledger.Path = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOG_OUTPUT"); val != "" {
		config.Logging.Output = val
	}

	return nil
}

// parseDelay accepts a Go duration ("250ms") or a bare number of seconds
// ("0.5"), the latter matching the historical --delay flag.
func parseDelay(val string) (time.Duration, error) {
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q", val)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("invalid max connections: %d", c.Server.MaxConnections)
	}

	if c.Archive.StorageRoot == "" {
		return fmt.Errorf("storage root is required")
	}
	if c.Archive.ChunkSize < 1 {
		return fmt.Errorf("invalid chunk size: %d", c.Archive.ChunkSize)
	}
	if c.Archive.Delay < 0 {
		return fmt.Errorf("invalid delay: %s", c.Archive.Delay)
	}
	if c.Archive.Command == "" {
		return fmt.Errorf("archive command is required")
	}
	if strings.ContainsAny(c.Archive.Extension, "/\\\"") {
		return fmt.Errorf("invalid archive extension: %s", c.Archive.Extension)
	}
	if c.Archive.MaxConcurrent < 0 {
		return fmt.Errorf("invalid max concurrent archives: %d", c.Archive.MaxConcurrent)
	}

	if c.Admin.Enabled && (c.Admin.Port < 1 || c.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", c.Admin.Port)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Resolve makes the storage root absolute. It is called once at startup so
// that every request joins against the same absolute root.
func (c *Config) Resolve() error {
	root, err := filepath.Abs(c.Archive.StorageRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve storage root %s: %w", c.Archive.StorageRoot, err)
	}
	c.Archive.StorageRoot = root
	return nil
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

func (c *Config) GetAdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Address, c.Admin.Port)
}

// ArchiveFilename returns the attachment filename for an archive id.
func (c *Config) ArchiveFilename(id string) string {
	if c.Archive.Extension == "" {
		return id
	}
	return id + "." + c.Archive.Extension
}

func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadFromFile loads a specific configuration file
func LoadFromFile(path string) (*Config, error) {
	config := Default()

	if err := decodeFile(path, &config); err != nil {
		return nil, err
	}

	if err := loadFromEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// ParseDelay is exported for the CLI --delay flag.
func ParseDelay(val string) (time.Duration, error) {
	return parseDelay(val)
}
