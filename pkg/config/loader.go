package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes environment variables when none is configured.
const DefaultEnvPrefix = "QUERYKIT"

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      map[string]*pflag.Flag
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "QUERYKIT")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
		flags:      map[string]*pflag.Flag{},
	}
}

// BindFlag lets a command-line flag override key when the flag was set.
// Flags rank above every other source.
func (l *ViperLoader) BindFlag(key string, flag *pflag.Flag) *ViperLoader {
	if l != nil && flag != nil {
		l.flags[key] = flag
	}
	return l
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	l.bindEnvVars(v)
	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("log.level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("log.format", l.prefixedEnv("LOG_FORMAT"))

	v.BindEnv("store.type", l.prefixedEnv("STORE_TYPE"))
	v.BindEnv("store.data_file", l.prefixedEnv("STORE_DATA_FILE"))

	v.BindEnv("mongodb.url", l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("mongodb.database", l.prefixedEnv("MONGODB_DATABASE"))
	v.BindEnv("mongodb.connect_timeout", l.prefixedEnv("MONGODB_CONNECT_TIMEOUT"))
	v.BindEnv("mongodb.operation_timeout", l.prefixedEnv("MONGODB_OPERATION_TIMEOUT"))

	v.BindEnv("query.default_limit", l.prefixedEnv("QUERY_DEFAULT_LIMIT"))
	v.BindEnv("query.max_limit", l.prefixedEnv("QUERY_MAX_LIMIT"))

	v.BindEnv("tracing.enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("tracing.endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("tracing.sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("store.type", cfg.Store.Type)
	v.SetDefault("store.data_file", cfg.Store.DataFile)

	v.SetDefault("mongodb.url", cfg.MongoDB.URL)
	v.SetDefault("mongodb.database", cfg.MongoDB.Database)
	v.SetDefault("mongodb.connect_timeout", cfg.MongoDB.ConnectTimeout)
	v.SetDefault("mongodb.operation_timeout", cfg.MongoDB.OperationTimeout)

	v.SetDefault("query.default_limit", cfg.Query.DefaultLimit)
	v.SetDefault("query.max_limit", cfg.Query.MaxLimit)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Store.Type = strings.ToLower(strings.TrimSpace(cfg.Store.Type))

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Log.Level) {
		errs = append(errs, fmt.Errorf("invalid log.level: %s (must be one of: %v)", cfg.Log.Level, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, cfg.Log.Format) {
		errs = append(errs, fmt.Errorf("invalid log.format: %s (must be one of: %v)", cfg.Log.Format, validFormats))
	}

	switch cfg.Store.Type {
	case StoreTypeMemory:
	case StoreTypeMongoDB:
		if cfg.MongoDB.ConnectTimeout < 0 {
			errs = append(errs, errors.New("mongodb.connect_timeout must be >= 0"))
		}
		if cfg.MongoDB.OperationTimeout < 0 {
			errs = append(errs, errors.New("mongodb.operation_timeout must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store.type: %s (must be one of: %v)",
			cfg.Store.Type, []string{StoreTypeMemory, StoreTypeMongoDB}))
	}

	if cfg.Query.DefaultLimit < 0 {
		errs = append(errs, errors.New("query.default_limit must be >= 0"))
	}
	if cfg.Query.MaxLimit < 0 {
		errs = append(errs, errors.New("query.max_limit must be >= 0"))
	}
	if cfg.Query.MaxLimit > 0 && cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, errors.New("query.default_limit must not exceed query.max_limit"))
	}

	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("tracing.sample_rate must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// RequireMongoDB reports missing connection settings. It is checked by
// commands that actually connect, so offline commands work without them.
func (c *Config) RequireMongoDB() error {
	var errs []error
	if strings.TrimSpace(c.MongoDB.URL) == "" {
		errs = append(errs, errors.New("mongodb.url is required"))
	}
	if strings.TrimSpace(c.MongoDB.Database) == "" {
		errs = append(errs, errors.New("mongodb.database is required"))
	}
	return errors.Join(errs...)
}
