package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Pipeline PipelineConfig
}

// ServerConfig holds the operational HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration for audio clips
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// PipelineConfig holds the timeline pipeline tuning parameters
type PipelineConfig struct {
	// TickSpec is the cron expression driving per-channel pipeline runs.
	TickSpec string
	// MaxConcurrent caps the number of channel runs processed in parallel.
	MaxConcurrent int
	// GapThreshold is the minimum trailing extension an overlapping
	// recognition event must contribute to be accepted.
	GapThreshold time.Duration
	// MergeFloor is the duration below which a recognized segment becomes
	// a merge candidate.
	MergeFloor time.Duration
	// MergeAdjacency is the maximum gap between a merge candidate and a
	// neighbor for them to count as adjacent.
	MergeAdjacency time.Duration
	// MinAnalysisDuration is the duration below which unrecognized
	// segments are never analyzed.
	MinAnalysisDuration time.Duration
	// SuppressionCap bounds a title-rule suppression interval.
	SuppressionCap time.Duration
	// OverlapTolerance is the slack applied when deactivating previously
	// persisted segments that overlap a freshly synthesized timeline.
	OverlapTolerance time.Duration
	// RecentExemption protects segments created within this window from
	// the overlap deactivation pass.
	RecentExemption time.Duration
	// SnapshotTTL bounds how long channel configuration snapshots are
	// served from cache.
	SnapshotTTL time.Duration
	// RunLockTTL bounds the per-channel run lock.
	RunLockTTL time.Duration
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.metricsPort", 9091)
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "airtrail")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "clips")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)
	viper.SetDefault("storage.urlExpiry", "1h")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Pipeline defaults
	viper.SetDefault("pipeline.tickSpec", "0 * * * *")
	viper.SetDefault("pipeline.maxConcurrent", 4)
	viper.SetDefault("pipeline.gapThreshold", "2s")
	viper.SetDefault("pipeline.mergeFloor", "20s")
	viper.SetDefault("pipeline.mergeAdjacency", "1s")
	viper.SetDefault("pipeline.minAnalysisDuration", "10s")
	viper.SetDefault("pipeline.suppressionCap", "10m")
	viper.SetDefault("pipeline.overlapTolerance", "1s")
	viper.SetDefault("pipeline.recentExemption", "5m")
	viper.SetDefault("pipeline.snapshotTTL", "5m")
	viper.SetDefault("pipeline.runLockTTL", "30m")
}
