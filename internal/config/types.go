// Package config provides unified configuration management.
//
// Load priority (high to low):
//  1. Environment variables (via .env files or shell/systemd injection)
//  2. YAML config file ({env}.yaml, e.g. dev.yaml, test.yaml, prod.yaml)
//  3. Hardcoded defaults
//
// Single source of truth for credentials:
//
//	Passwords/secrets live only in .env files (YAML never stores a password).
//	The .env file is shared by Docker Compose (--env-file), the Go apps
//	(godotenv), and systemd (EnvironmentFile=), keeping exactly one source.
//
// Config path resolution:
//  1. --config flag (explicit path)
//  2. CONFIG_DIR environment variable
//  3. default path by APP_ENV:
//     - prod -> /etc/xyn/
//     - dev/test -> ./configs/
//
// Environments:
//   - dev:  APP_ENV=dev  -> configs/dev.yaml + .env.dev
//   - test: APP_ENV=test -> configs/test.yaml + .env.test
//   - prod: APP_ENV=prod -> /etc/xyn/prod.yaml + prod environment injection
package config

import "time"

// Environment names a deployment environment.
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test" // shared by integration tests and e2e
	EnvDevelopment Environment = "dev"
)

// YAMLConfig is the unified YAML config file structure.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig is the API server's configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig holds the PostgreSQL connection parameters.
//
// The relational store is the sole source of truth: there is no
// sqlite/mongodb multi-driver switch here, unlike the teacher's older
// versions, since cross-store consistency is explicitly out of scope.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // read only from the DB_PASSWORD environment variable
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig is the connection used by the event outbox's downstream
// publisher and by idle-wake signaling.
//
// Optional infrastructure: claim/lease correctness never depends on it.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // read only from the REDIS_PASSWORD environment variable
}

// MinIOConfig configures artifact content storage (a content-addressed blob store).
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // e.g. localhost:9000
	AccessKey string `yaml:"-"`        // read only from MINIO_ROOT_USER
	SecretKey string `yaml:"-"`        // read only from MINIO_ROOT_PASSWORD
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// WorkerConfig holds the lease and polling parameters.
type WorkerConfig struct {
	ID                 string        `yaml:"id"` // defaults to host+pid, see defaultWorkerID in config.go
	LeaseDuration      time.Duration `yaml:"lease_duration"`
	IdlePoll           time.Duration `yaml:"idle_poll"`
	RunDeadline        time.Duration `yaml:"run_deadline"`
	MaxStepsPerRun     int           `yaml:"max_steps_per_run"`
	AutoCreateSchema   bool          `yaml:"auto_create_schema"`
	RequiredMigrations []string      `yaml:"required_migrations"`
}

// MetricsConfig is the metrics collector's sampling interval.
type MetricsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Config is the application's resolved configuration.
type Config struct {
	Env         Environment
	DatabaseURL string
	RedisURL    string
	APIPort     string
	MinIO       MinIOConfig
	Worker      WorkerConfig
	Metrics     MetricsConfig

	// ConfigFilePath is the config file actually loaded from (empty means
	// defaults were used throughout).
	ConfigFilePath string
}

// yamlConfigInternal wraps YAMLConfig to also track where it was loaded from (not part of the YAML itself).
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
