package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"edurisk-engine/internal/common"
	"edurisk-engine/internal/ml"
)

type Settings struct {
	DataPath              string
	MetricsPort           int
	HighRiskThreshold     float64
	MediumRiskThreshold   float64
	RetrainInterval       time.Duration
	MinValidationAccuracy float64
	TreeCount             int
	MaxTreeDepth          int
	MinSamplesLeaf        int
	TrainingSeed          int64
	SplitRatio            float64
	AllowUnknownCategory  bool
	RecordsBaseURL        string
	RecordsAPIKey         string
	RESTTimeout           time.Duration
	DatasetPath           string
}

type ConfigFile struct {
	Risk struct {
		HighThreshold   float64 `yaml:"highThreshold"`
		MediumThreshold float64 `yaml:"mediumThreshold"`
	} `yaml:"risk"`

	Training struct {
		RetrainIntervalDays   int     `yaml:"retrainIntervalDays"`
		MinValidationAccuracy float64 `yaml:"minValidationAccuracy"`
		TreeCount             int     `yaml:"treeCount"`
		MaxTreeDepth          int     `yaml:"maxTreeDepth"`
		MinSamplesLeaf        int     `yaml:"minSamplesLeaf"`
		Seed                  int64   `yaml:"seed"`
		SplitRatio            float64 `yaml:"splitRatio"`
		DatasetPath           string  `yaml:"datasetPath"`
	} `yaml:"training"`

	Encoding struct {
		AllowUnknownCategory bool `yaml:"allowUnknownCategory"`
	} `yaml:"encoding"`

	Records struct {
		BaseURL string `yaml:"baseURL"`
		APIKey  string `yaml:"apiKey"`
		Timeout string `yaml:"timeout"`
	} `yaml:"records"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout := 5 * time.Second
	if config.Records.Timeout != "" {
		if d, err := time.ParseDuration(config.Records.Timeout); err == nil {
			restTimeout = d
		}
	}

	settings := Settings{
		DataPath:              getEnvOrDefault(common.EnvDataPath, orString(config.System.DataPath, common.DefaultDataPath)),
		MetricsPort:           getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		HighRiskThreshold:     getFloatFromEnvOrConfig(common.EnvHighRiskThreshold, config.Risk.HighThreshold, common.DefaultHighRiskThreshold),
		MediumRiskThreshold:   getFloatFromEnvOrConfig(common.EnvMediumRiskThreshold, config.Risk.MediumThreshold, common.DefaultMediumRiskThreshold),
		RetrainInterval:       daysToInterval(getIntFromEnvOrConfig(common.EnvRetrainIntervalDays, config.Training.RetrainIntervalDays, common.DefaultRetrainIntervalDays)),
		MinValidationAccuracy: getFloatFromEnvOrConfig(common.EnvMinValidationAccuracy, config.Training.MinValidationAccuracy, common.DefaultMinValidationAccuracy),
		TreeCount:             getIntFromEnvOrConfig(common.EnvTreeCount, config.Training.TreeCount, common.DefaultTreeCount),
		MaxTreeDepth:          getIntFromEnvOrConfig(common.EnvMaxTreeDepth, config.Training.MaxTreeDepth, common.DefaultMaxTreeDepth),
		MinSamplesLeaf:        orInt(config.Training.MinSamplesLeaf, common.DefaultMinSamplesLeaf),
		TrainingSeed:          getInt64FromEnvOrConfig(common.EnvTrainingSeed, config.Training.Seed, common.DefaultTrainingSeed),
		SplitRatio:            orFloat(config.Training.SplitRatio, common.DefaultSplitRatio),
		AllowUnknownCategory:  getBoolFromEnvOrConfig(common.EnvAllowUnknownCategory, config.Encoding.AllowUnknownCategory),
		RecordsBaseURL:        getEnvOrDefault(common.EnvRecordsBaseURL, config.Records.BaseURL),
		RecordsAPIKey:         getEnvOrDefault(common.EnvRecordsAPIKey, config.Records.APIKey),
		RESTTimeout:           restTimeout,
		DatasetPath:           getEnvOrDefault(common.EnvDatasetPath, config.Training.DatasetPath),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:              getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		MetricsPort:           getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		HighRiskThreshold:     getFloatOrDefault(common.EnvHighRiskThreshold, common.DefaultHighRiskThreshold),
		MediumRiskThreshold:   getFloatOrDefault(common.EnvMediumRiskThreshold, common.DefaultMediumRiskThreshold),
		RetrainInterval:       daysToInterval(getIntOrDefault(common.EnvRetrainIntervalDays, common.DefaultRetrainIntervalDays)),
		MinValidationAccuracy: getFloatOrDefault(common.EnvMinValidationAccuracy, common.DefaultMinValidationAccuracy),
		TreeCount:             getIntOrDefault(common.EnvTreeCount, common.DefaultTreeCount),
		MaxTreeDepth:          getIntOrDefault(common.EnvMaxTreeDepth, common.DefaultMaxTreeDepth),
		MinSamplesLeaf:        common.DefaultMinSamplesLeaf,
		TrainingSeed:          int64(getIntOrDefault(common.EnvTrainingSeed, common.DefaultTrainingSeed)),
		SplitRatio:            common.DefaultSplitRatio,
		AllowUnknownCategory:  getBoolOrDefault(common.EnvAllowUnknownCategory, false),
		RecordsBaseURL:        os.Getenv(common.EnvRecordsBaseURL), // optional
		RecordsAPIKey:         os.Getenv(common.EnvRecordsAPIKey),
		RESTTimeout:           getDurationOrDefault(common.EnvRESTTimeout, 5*time.Second),
		DatasetPath:           os.Getenv(common.EnvDatasetPath),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// RiskThresholds returns the validated threshold pair used by the categorizer.
func (s *Settings) RiskThresholds() ml.Thresholds {
	return ml.Thresholds{High: s.HighRiskThreshold, Medium: s.MediumRiskThreshold}
}

func daysToInterval(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, def int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getInt64FromEnvOrConfig(key string, configValue, def int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getFloatFromEnvOrConfig(key string, configValue, def float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values.
// Threshold ordering is checked here so a misconfigured deployment fails at
// startup instead of categorizing with swapped boundaries.
func validateSettings(settings *Settings) error {
	if err := settings.RiskThresholds().Validate(); err != nil {
		return err
	}

	if settings.RetrainInterval < 24*time.Hour || settings.RetrainInterval > 365*24*time.Hour {
		return fmt.Errorf("retrain interval must be between 1 and 365 days, got %v", settings.RetrainInterval)
	}
	if settings.MinValidationAccuracy <= 0 || settings.MinValidationAccuracy >= 1 {
		return fmt.Errorf("minimum validation accuracy must be between 0 and 1, got %f", settings.MinValidationAccuracy)
	}
	if settings.SplitRatio <= 0 || settings.SplitRatio >= 0.5 {
		return fmt.Errorf("validation split ratio must be between 0 and 0.5, got %f", settings.SplitRatio)
	}

	if settings.TreeCount <= 0 || settings.TreeCount > 2000 {
		return fmt.Errorf("tree count must be between 1 and 2000, got %d", settings.TreeCount)
	}
	if settings.MaxTreeDepth <= 0 || settings.MaxTreeDepth > 64 {
		return fmt.Errorf("max tree depth must be between 1 and 64, got %d", settings.MaxTreeDepth)
	}
	if settings.MinSamplesLeaf <= 0 {
		return fmt.Errorf("min samples per leaf must be positive, got %d", settings.MinSamplesLeaf)
	}

	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}

	return nil
}
