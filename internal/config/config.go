package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".askdb"
	envPrefix  = "ASKDB"

	DialectOllama = "ollama"
	DialectOpenAI = "openai"

	maxHealthTimeout = 2 * time.Second
	minRounds        = 1
	maxRounds        = 32
)

const (
	KeyBackendDialect      = "backend.dialect"
	KeyBackendURL          = "backend.url"
	KeyBackendModel        = "backend.model"
	KeyBackendAPIKey       = "backend.api_key"
	KeyBackendTimeout      = "backend.timeout"
	KeyBackendHealth       = "backend.health_timeout"
	KeyBackendMaxBytes     = "backend.max_response_bytes"
	KeyBackendWarnBytes    = "backend.warn_response_bytes"
	KeyMaxRounds           = "orchestrator.max_rounds"
	KeyToolTimeout         = "orchestrator.tool_timeout"
	KeyMemoryDir           = "memory.dir"
	KeyMemoryTTL           = "memory.ttl"
	KeyMemorySweepInterval = "memory.sweep_interval"
	KeyStorePath           = "store.path"
	KeyStoreBackupDir      = "store.backup_dir"
	KeySessionsDir         = "sessions.dir"
	KeyExportDir           = "export.dir"
	KeyLogLevel            = "log.level"
	KeyLogPretty           = "log.pretty"
	KeyDiagnosticsAddr     = "diagnostics.addr"
)

type Config struct {
	Backend      BackendConfig
	Orchestrator OrchestratorConfig
	Memory       MemoryConfig
	Store        StoreConfig
	SessionsDir  string
	ExportDir    string
	Log          LogConfig
	Diagnostics  DiagnosticsConfig
}

type BackendConfig struct {
	Dialect           string
	URL               string
	Model             string
	APIKey            string
	Timeout           time.Duration
	HealthTimeout     time.Duration
	MaxResponseBytes  int64
	WarnResponseBytes int64
}

type OrchestratorConfig struct {
	MaxRounds   int
	ToolTimeout time.Duration
}

type MemoryConfig struct {
	Dir           string
	TTL           time.Duration
	SweepInterval time.Duration
}

type StoreConfig struct {
	Path      string
	BackupDir string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type DiagnosticsConfig struct {
	Addr string
}

// Load reads ~/.askdb/config.toml (or the file already set on v), applies
// ASKDB_* environment overrides and validates the result.
func Load(v *viper.Viper, home string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	if strings.TrimSpace(home) == "" {
		return Config{}, errors.New("home directory is empty")
	}

	root := filepath.Join(home, configDir)
	SetDefaults(v, root)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(root)
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Backend: BackendConfig{
			Dialect:           strings.ToLower(strings.TrimSpace(v.GetString(KeyBackendDialect))),
			URL:               strings.TrimSpace(v.GetString(KeyBackendURL)),
			Model:             strings.TrimSpace(v.GetString(KeyBackendModel)),
			APIKey:            v.GetString(KeyBackendAPIKey),
			Timeout:           v.GetDuration(KeyBackendTimeout),
			HealthTimeout:     v.GetDuration(KeyBackendHealth),
			MaxResponseBytes:  v.GetInt64(KeyBackendMaxBytes),
			WarnResponseBytes: v.GetInt64(KeyBackendWarnBytes),
		},
		Orchestrator: OrchestratorConfig{
			MaxRounds:   v.GetInt(KeyMaxRounds),
			ToolTimeout: v.GetDuration(KeyToolTimeout),
		},
		Memory: MemoryConfig{
			Dir:           expandHome(v.GetString(KeyMemoryDir), home),
			TTL:           v.GetDuration(KeyMemoryTTL),
			SweepInterval: v.GetDuration(KeyMemorySweepInterval),
		},
		Store: StoreConfig{
			Path:      expandHome(v.GetString(KeyStorePath), home),
			BackupDir: expandHome(v.GetString(KeyStoreBackupDir), home),
		},
		SessionsDir: expandHome(v.GetString(KeySessionsDir), home),
		ExportDir:   expandHome(v.GetString(KeyExportDir), home),
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Pretty: v.GetBool(KeyLogPretty),
		},
		Diagnostics: DiagnosticsConfig{
			Addr: strings.TrimSpace(v.GetString(KeyDiagnosticsAddr)),
		},
	}

	cfg.clamp()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func SetDefaults(v *viper.Viper, root string) {
	v.SetDefault(KeyBackendDialect, DialectOllama)
	v.SetDefault(KeyBackendURL, "http://127.0.0.1:11434")
	v.SetDefault(KeyBackendModel, "llama3.1")
	v.SetDefault(KeyBackendAPIKey, "")
	v.SetDefault(KeyBackendTimeout, 120*time.Second)
	v.SetDefault(KeyBackendHealth, maxHealthTimeout)
	v.SetDefault(KeyBackendMaxBytes, int64(10<<20))
	v.SetDefault(KeyBackendWarnBytes, int64(5<<20))
	v.SetDefault(KeyMaxRounds, 8)
	v.SetDefault(KeyToolTimeout, 30*time.Second)
	v.SetDefault(KeyMemoryDir, filepath.Join(root, "memory"))
	v.SetDefault(KeyMemoryTTL, 24*time.Hour)
	v.SetDefault(KeyMemorySweepInterval, 10*time.Minute)
	v.SetDefault(KeyStorePath, filepath.Join(root, "records.db"))
	v.SetDefault(KeyStoreBackupDir, filepath.Join(root, "backups"))
	v.SetDefault(KeySessionsDir, filepath.Join(root, "sessions"))
	v.SetDefault(KeyExportDir, filepath.Join(root, "exports"))
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogPretty, true)
	v.SetDefault(KeyDiagnosticsAddr, "")
}

func (c *Config) clamp() {
	if c.Backend.HealthTimeout <= 0 || c.Backend.HealthTimeout > maxHealthTimeout {
		c.Backend.HealthTimeout = maxHealthTimeout
	}
	if c.Orchestrator.MaxRounds < minRounds {
		c.Orchestrator.MaxRounds = minRounds
	}
	if c.Orchestrator.MaxRounds > maxRounds {
		c.Orchestrator.MaxRounds = maxRounds
	}
}

func (c Config) Validate() error {
	switch c.Backend.Dialect {
	case DialectOllama, DialectOpenAI:
	default:
		return fmt.Errorf("unsupported backend dialect %q", c.Backend.Dialect)
	}

	parsed, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("backend url must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("backend url host is required")
	}
	if c.Backend.Model == "" {
		return errors.New("backend model is required")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	if c.Backend.MaxResponseBytes <= 0 {
		return errors.New("backend max response bytes must be positive")
	}
	if c.Backend.WarnResponseBytes <= 0 || c.Backend.WarnResponseBytes > c.Backend.MaxResponseBytes {
		return fmt.Errorf("backend warn response bytes must be in (0, %d]", c.Backend.MaxResponseBytes)
	}
	if c.Orchestrator.ToolTimeout <= 0 {
		return errors.New("tool timeout must be positive")
	}
	if c.Memory.Dir == "" {
		return errors.New("memory dir is empty")
	}
	if c.Memory.TTL <= 0 {
		return errors.New("memory ttl must be positive")
	}
	if c.Store.Path == "" {
		return errors.New("store path is empty")
	}
	if c.Store.BackupDir == "" {
		return errors.New("store backup dir is empty")
	}
	if c.SessionsDir == "" {
		return errors.New("sessions dir is empty")
	}

	return nil
}

func expandHome(path string, home string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
