package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// configDir is set externally via SetConfigDir and takes top priority.
var configDir string

// envSearchDirs are the .env search directories (dev/test only; production
// gets its environment injected by systemd).
var envSearchDirs = []string{
	".",
	"..",
}

// SetConfigDir sets the config file directory (for the --config flag).
// After this call, Load searches this directory first.
func SetConfigDir(dir string) {
	configDir = dir
}

// configPathsForEnv returns the config search paths for env.
func configPathsForEnv(env Environment) []string {
	if env == EnvProduction {
		return []string{"/etc/xyn"}
	}
	// dev/test: the project root's configs/
	return []string{"configs", "../configs"}
}

// GetConfigDir returns the active config directory.
//
// Priority:
//  1. --config flag
//  2. running as root -> /etc/xyn (matches the systemd deployment)
//  3. /etc/xyn exists and is writable
//  4. fall back to configs/ for development
func GetConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if IsRoot() {
		return "/etc/xyn"
	}
	if info, err := os.Stat("/etc/xyn"); err == nil && info.IsDir() {
		testFile := "/etc/xyn/.write_test"
		if err := os.WriteFile(testFile, []byte("test"), 0644); err == nil {
			os.Remove(testFile)
			return "/etc/xyn"
		}
	}
	return "configs"
}

// GetConfigFilePath returns the path of the currently loaded config file.
func GetConfigFilePath() string {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	cfg := loadYAMLConfig(env)
	return cfg.loadedFrom
}

// ConfigExists reports whether a config file exists (for first-run detection).
//
// Searches for {APP_ENV}.yaml (e.g. dev.yaml, prod.yaml); finding one counts as configured.
func ConfigExists() bool {
	return findConfigFile() != ""
}

// IsRoot reports whether the current process is running as root.
func IsRoot() bool {
	return os.Getuid() == 0
}

// ReadConfigFile reads the raw YAML of the currently active config file (for a config-management API).
func ReadConfigFile() ([]byte, string, error) {
	path := GetConfigFilePath()
	if path == "" {
		return nil, "", fmt.Errorf("no config file found")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	return data, path, nil
}

// findConfigFile returns the first config file found across the search paths.
func findConfigFile(extraNames ...string) string {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	names := []string{fmt.Sprintf("%s.yaml", env)}
	names = append(names, extraNames...)
	paths := effectiveConfigPaths()
	for _, base := range paths {
		for _, name := range names {
			p := filepath.Join(base, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// effectiveConfigPaths returns the actual search paths.
//
// Priority:
//  1. --config flag (SetConfigDir)
//  2. CONFIG_DIR environment variable
//  3. the default path for APP_ENV
func effectiveConfigPaths() []string {
	if configDir != "" {
		return []string{configDir}
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return []string{dir}
	}
	env := parseEnv(getEnv("APP_ENV", "dev"))
	return configPathsForEnv(env)
}

// loadEnvFiles loads the .env file for env.
//
// Production never searches for a .env file (passwords are injected via
// systemd's EnvironmentFile or the shell environment). dev/test load
// .env.{env}, the single source of credentials shared with Docker Compose.
func loadEnvFiles(env Environment) {
	// Production: never search for a .env file.
	if env == EnvProduction {
		return
	}

	// Load .env.{env}, the dev/test credentials file shared with Docker Compose.
	// godotenv.Load never overrides an already-set environment variable.
	envFileName := fmt.Sprintf(".env.%s", string(env))
	for _, dir := range envSearchDirs {
		if err := godotenv.Load(filepath.Join(dir, envFileName)); err == nil {
			break
		}
	}
}
