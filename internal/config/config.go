package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the application config.
//  1. Load .env.{APP_ENV} (secrets: passwords, keys)
//  2. Load configs/{env}.yaml per APP_ENV (structured config)
//  3. Apply environment-variable overrides on top of the YAML
func Load() *Config {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg := loadYAMLConfig(env)

	dbPassword := getEnv("DB_PASSWORD", "xyn_dev_password")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	yamlCfg.Database.Password = dbPassword
	yamlCfg.Redis.Password = redisPassword
	yamlCfg.MinIO.AccessKey = getEnv("MINIO_ROOT_USER", "xyn")
	yamlCfg.MinIO.SecretKey = getEnv("MINIO_ROOT_PASSWORD", "xyn_dev_password")

	worker := yamlCfg.Worker
	worker.ID = getEnv("WORKER_ID", worker.ID)
	worker.LeaseDuration = getEnvDuration("LEASE_DURATION_SECONDS", worker.LeaseDuration)
	worker.IdlePoll = durationFromMillis(getEnvInt("IDLE_POLL_MS", int(worker.IdlePoll/time.Millisecond)))
	worker.AutoCreateSchema = getEnvBool("XYN_AUTO_CREATE_SCHEMA", worker.AutoCreateSchema)
	if v := os.Getenv("XYN_REQUIRED_MIGRATIONS"); v != "" {
		worker.RequiredMigrations = splitNonEmpty(v, ",")
	}
	if worker.ID == "" {
		worker.ID = defaultWorkerID()
	}

	metrics := yamlCfg.Metrics
	metrics.Interval = getEnvDuration("METRICS_COLLECTOR_INTERVAL", metrics.Interval)

	cfg := &Config{
		Env:            env,
		DatabaseURL:    getEnv("DATABASE_URL", buildDatabaseURL(yamlCfg.Database, dbPassword)),
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		APIPort:        yamlCfg.Server.Port,
		MinIO:          yamlCfg.MinIO,
		Worker:         worker,
		Metrics:        metrics,
		ConfigFilePath: yamlCfg.loadedFrom,
	}
	cfg.applyDefaults()
	return cfg
}

// loadYAMLConfig loads the YAML config file.
// Load order: defaults -> common.yaml -> {env}.yaml.
func loadYAMLConfig(env Environment) *yamlConfigInternal {
	cfg := &yamlConfigInternal{
		YAMLConfig: YAMLConfig{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "xyn", Name: "xyn", SSLMode: "disable"},
			Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
			MinIO:    MinIOConfig{Endpoint: "localhost:9000", Bucket: "xyn-artifacts"},
			Worker: WorkerConfig{
				LeaseDuration:      60 * time.Second,
				IdlePoll:           500 * time.Millisecond,
				RunDeadline:        60 * time.Minute,
				MaxStepsPerRun:     200,
				AutoCreateSchema:   false,
				RequiredMigrations: []string{"001_initial_schema"},
			},
			Metrics: MetricsConfig{Interval: 5 * time.Second},
		},
	}

	for _, base := range configPaths() {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, &cfg.YAMLConfig)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths() {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, &cfg.YAMLConfig)
			cfg.loadedFrom = path
			break
		}
	}

	return cfg
}

// configPaths extends effectiveConfigPaths with relative-path variants, so
// the binary also resolves configs/ when run from a subdirectory (e.g. tests/).
func configPaths() []string {
	paths := effectiveConfigPaths()
	extra := []string{"../configs", "../../configs", "../../../configs"}
	return append(paths, extra...)
}

// applyDefaults fills in zero-valued worker/metrics fields.
func (c *Config) applyDefaults() {
	if c.Worker.LeaseDuration == 0 {
		c.Worker.LeaseDuration = 60 * time.Second
	}
	if c.Worker.IdlePoll == 0 {
		c.Worker.IdlePoll = 500 * time.Millisecond
	}
	if c.Worker.RunDeadline == 0 {
		c.Worker.RunDeadline = 60 * time.Minute
	}
	if c.Worker.MaxStepsPerRun == 0 {
		c.Worker.MaxStepsPerRun = 200
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 5 * time.Second
	}
}

func durationFromMillis(ms int) time.Duration {
	if ms <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaultWorkerID returns a host+pid default worker id.
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
