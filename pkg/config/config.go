package config

import "time"

// Store type constants
const (
	// StoreTypeMemory keeps records in process; data comes from store.data_file.
	StoreTypeMemory = "memory"
	// StoreTypeMongoDB reads records from the mongodb section.
	StoreTypeMongoDB = "mongodb"
)

// Config is the root configuration for querykit commands.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Query   QueryConfig   `mapstructure:"query"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Type string `mapstructure:"type"`
	// DataFile seeds the memory store: a JSON object mapping collection
	// names to arrays of documents.
	DataFile string `mapstructure:"data_file"`
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URL              string        `mapstructure:"url"`
	Database         string        `mapstructure:"database"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// QueryConfig bounds queries issued from the command line.
type QueryConfig struct {
	// DefaultLimit applies when a request sets no limit; 0 is unbounded.
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit rejects larger limits; 0 disables the cap.
	MaxLimit int `mapstructure:"max_limit"`
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Type: StoreTypeMongoDB,
		},
		MongoDB: MongoDBConfig{
			ConnectTimeout:   5 * time.Second,
			OperationTimeout: 5 * time.Second,
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
	}
}
