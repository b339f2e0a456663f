// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the run database and staged artifacts
	LogLevel string
	Port     int
	DevMode  bool

	// Execution defaults. Requests can override shots and backend per run.
	Shots   int
	Backend string // "local_statevector" or a provider backend name

	SimMaxQubits int // amplitude-vector cap for the local simulator

	IBMQ      IBMQConfig
	Artifacts ArtifactConfig
}

// IBMQConfig holds the quantum provider connection settings
type IBMQConfig struct {
	APIURL       string
	APIToken     string
	PollInterval time.Duration // how often to poll a submitted job
	JobTimeout   time.Duration // give up on a job after this long
}

// Enabled reports whether the provider client can be constructed
func (c IBMQConfig) Enabled() bool {
	return c.APIToken != ""
}

// ArtifactConfig holds S3-compatible object storage settings for run artifacts
// (QASM exports and result snapshots). All four values are required to enable
// uploads.
type ArtifactConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetentionDays   int
}

// Enabled reports whether artifact uploads can be constructed
func (c ArtifactConfig) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUMATCH_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		Shots:        getEnvAsInt("SHOTS", 1024),
		Backend:      getEnv("QUANTUM_BACKEND", "local_statevector"),
		SimMaxQubits: getEnvAsInt("SIM_MAX_QUBITS", 24),
		IBMQ: IBMQConfig{
			APIURL:       getEnv("IBMQ_API_URL", "https://api.quantum-computing.ibm.com/runtime"),
			APIToken:     getEnv("IBMQ_API_TOKEN", ""),
			PollInterval: getEnvAsDuration("JOB_POLL_INTERVAL", 5*time.Second),
			JobTimeout:   getEnvAsDuration("JOB_TIMEOUT", 10*time.Minute),
		},
		Artifacts: ArtifactConfig{
			AccountID:       getEnv("ARTIFACT_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("ARTIFACT_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARTIFACT_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("ARTIFACT_BUCKET", ""),
			RetentionDays:   getEnvAsInt("ARTIFACT_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Shots <= 0 {
		return fmt.Errorf("SHOTS must be positive, got %d", c.Shots)
	}
	if c.SimMaxQubits <= 0 {
		return fmt.Errorf("SIM_MAX_QUBITS must be positive, got %d", c.SimMaxQubits)
	}
	if c.IBMQ.PollInterval <= 0 || c.IBMQ.JobTimeout <= 0 {
		return fmt.Errorf("job poll interval and timeout must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
