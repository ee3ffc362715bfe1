package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the worker
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	AWS        AWSConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	SMTP       SMTPConfig
	Worker     WorkerConfig
	Monitoring MonitoringConfig
}

// ServerConfig configures the ops HTTP surface (health, metrics, analytics)
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	AppDB PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// AWSConfig covers the SQS job queue and the S3 clip bucket. The endpoint
// overrides exist for localstack development.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	QueueURL        string `mapstructure:"queue_url"`
	Bucket          string `mapstructure:"bucket"`
	SQSEndpoint     string `mapstructure:"sqs_endpoint"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type ClassifierConfig struct {
	SampleRate     int           `mapstructure:"sample_rate"`
	PredictTimeout time.Duration `mapstructure:"predict_timeout"`
}

type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email"`
	UseTLS    bool   `mapstructure:"use_tls"`
}

// WorkerConfig tunes the polling loop and the stale-event janitor
type WorkerConfig struct {
	WaitTime          time.Duration `mapstructure:"wait_time"`
	BatchSize         int           `mapstructure:"batch_size"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
	JanitorInterval   time.Duration `mapstructure:"janitor_interval"`
	PendingMaxAge     time.Duration `mapstructure:"pending_max_age"`
}

type MonitoringConfig struct {
	LogLevel           string `mapstructure:"log_level"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint"`
	LokiEndpoint       string `mapstructure:"loki_endpoint"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("VIGIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.postgres_app.sslmode", "disable")

	// Mongo defaults
	viper.SetDefault("mongo.database", "smart_home")

	// AWS defaults
	viper.SetDefault("aws.region", "us-west-2")

	// Redis defaults
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.channel", "alerts")

	// Classifier defaults
	viper.SetDefault("classifier.sample_rate", 16000)
	viper.SetDefault("classifier.predict_timeout", "60s")

	// SMTP defaults
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.use_tls", true)

	// Worker defaults
	viper.SetDefault("worker.wait_time", "20s")
	viper.SetDefault("worker.batch_size", 10)
	viper.SetDefault("worker.visibility_timeout", "60s")
	viper.SetDefault("worker.error_backoff", "5s")
	viper.SetDefault("worker.janitor_interval", "1h")
	viper.SetDefault("worker.pending_max_age", "24h")

	// Monitoring defaults
	viper.SetDefault("monitoring.log_level", "info")
}

func validateConfig(config *Config) error {
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Mongo.URI == "" {
		return fmt.Errorf("mongo URI is required")
	}
	if config.AWS.QueueURL == "" {
		return fmt.Errorf("SQS queue URL is required")
	}
	if config.AWS.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if config.Worker.BatchSize < 1 || config.Worker.BatchSize > 10 {
		return fmt.Errorf("worker batch size must be between 1 and 10")
	}
	return nil
}
