package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// buildDatabaseURL builds the PostgreSQL connection string.
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

// buildRedisURL builds the Redis connection string.
func buildRedisURL(redis RedisConfig) string {
	if redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", redis.Password, redis.Host, redis.Port, redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

// maskPassword hides the password portion of a connection URL.
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:]+:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// parseEnv parses an environment name string.
func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// getEnv reads an environment variable, with a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration reads an environment variable in seconds and converts it to a time.Duration.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// getEnvInt reads an integer environment variable.
func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool reads a boolean environment variable, accepting true/1/yes (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// IsTest reports whether this is the test environment.
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String returns a config summary with passwords masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, DB: %s, Redis: %s, Worker: %s}",
		c.Env, maskPassword(c.DatabaseURL), maskPassword(c.RedisURL), c.Worker.ID)
}
