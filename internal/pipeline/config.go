package pipeline

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines pipeline tunables.
type Config struct {
	FlowThreshold float64       `yaml:"flow_threshold"`
	AnomalyCutoff float64       `yaml:"anomaly_cutoff"`
	WindowSize    int           `yaml:"window_size"`
	Horizon       int           `yaml:"forecast_horizon"`
	StepInterval  time.Duration `yaml:"step_interval"`
}

// LoadConfig loads config from yaml or env. File values (PIPELINE_CONFIG)
// override defaults; env vars override both.
func LoadConfig() (Config, error) {
	cfg := Config{
		FlowThreshold: 40.0,
		AnomalyCutoff: 0.8,
		WindowSize:    12,
		Horizon:       24,
		StepInterval:  time.Hour,
	}

	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.FlowThreshold = getenvFloatDefault("FLOW_THRESHOLD", cfg.FlowThreshold)
	cfg.AnomalyCutoff = getenvFloatDefault("ANOMALY_CUTOFF", cfg.AnomalyCutoff)
	cfg.WindowSize = getenvIntDefault("FORECAST_WINDOW_SIZE", cfg.WindowSize)
	cfg.Horizon = getenvIntDefault("FORECAST_HORIZON", cfg.Horizon)
	cfg.StepInterval = getenvDuration("FORECAST_STEP_INTERVAL", cfg.StepInterval)

	if cfg.FlowThreshold <= 0 {
		return cfg, errors.New("pipeline: flow threshold must be positive")
	}
	if cfg.AnomalyCutoff <= 0 || cfg.AnomalyCutoff > 1 {
		return cfg, errors.New("pipeline: anomaly cutoff must be in (0,1]")
	}
	if cfg.WindowSize <= 0 {
		return cfg, errors.New("pipeline: window size must be positive")
	}
	if cfg.Horizon <= 0 {
		return cfg, errors.New("pipeline: forecast horizon must be positive")
	}
	if cfg.StepInterval <= 0 {
		return cfg, errors.New("pipeline: step interval must be positive")
	}
	return cfg, nil
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
