package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rhonull/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
}

// SimulationConfig holds null distribution settings
type SimulationConfig struct {
	Workers           int   `yaml:"workers"`            // 0 means one worker per CPU
	DefaultIterations int   `yaml:"default_iterations"` // used when a request omits the iteration count
	MaxIterations     int   `yaml:"max_iterations"`     // upper bound accepted from remote callers
	BaseSeed          int64 `yaml:"base_seed"`          // used when a request supplies neither seeds nor a base seed
	VerboseRNG        bool  `yaml:"verbose_rng"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads configuration from the YAML file named by RHONULL_CONFIG_FILE, if
// any, then from environment variables, and validates it
func Load() (*Config, error) {
	return LoadFile(os.Getenv("RHONULL_CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
// Environment variables take precedence over values from the file.
func LoadFile(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to read config file: %w", err))
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("failed to parse config file: %w", err))
		}
	}

	applySimulationEnv(&config.Simulation)
	applyServerEnv(&config.Server)

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			DefaultIterations: 1000,
			MaxIterations:     1000000,
			BaseSeed:          42,
		},
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "release",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

func applySimulationEnv(sim *SimulationConfig) {
	sim.Workers = getEnvIntOrDefault("RHONULL_WORKERS", sim.Workers)
	sim.DefaultIterations = getEnvIntOrDefault("RHONULL_DEFAULT_ITERATIONS", sim.DefaultIterations)
	sim.MaxIterations = getEnvIntOrDefault("RHONULL_MAX_ITERATIONS", sim.MaxIterations)
	sim.BaseSeed = getEnvInt64OrDefault("RHONULL_BASE_SEED", sim.BaseSeed)
	sim.VerboseRNG = getEnvBoolOrDefault("RHONULL_VERBOSE_RNG", sim.VerboseRNG)
}

func applyServerEnv(server *ServerConfig) {
	server.Port = getEnvOrDefault("PORT", server.Port)
	server.GinMode = getEnvOrDefault("GIN_MODE", server.GinMode)
	server.ShutdownTimeout = getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", server.ShutdownTimeout)
}

func validateConfig(config *Config) error {
	sim := config.Simulation
	if sim.Workers < 0 {
		return errors.ConfigInvalid("RHONULL_WORKERS must be non-negative")
	}
	if sim.DefaultIterations <= 0 {
		return errors.ConfigInvalid("RHONULL_DEFAULT_ITERATIONS must be positive")
	}
	if sim.MaxIterations < sim.DefaultIterations {
		return errors.ConfigInvalid("RHONULL_MAX_ITERATIONS must be at least RHONULL_DEFAULT_ITERATIONS")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid("GIN_MODE must be one of debug, release, test")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
