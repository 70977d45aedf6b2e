package cfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edurisk-engine/internal/common"
	"edurisk-engine/internal/ml"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(common.EnvConfigFile, "")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, common.DefaultHighRiskThreshold, s.HighRiskThreshold)
	assert.Equal(t, common.DefaultMediumRiskThreshold, s.MediumRiskThreshold)
	assert.Equal(t, 30*24*time.Hour, s.RetrainInterval)
	assert.Equal(t, common.DefaultMinValidationAccuracy, s.MinValidationAccuracy)
	assert.Equal(t, common.DefaultTreeCount, s.TreeCount)
	assert.Equal(t, common.DefaultMaxTreeDepth, s.MaxTreeDepth)
	assert.Equal(t, int64(common.DefaultTrainingSeed), s.TrainingSeed)
	assert.Equal(t, common.DefaultSplitRatio, s.SplitRatio)
	assert.False(t, s.AllowUnknownCategory)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(common.EnvConfigFile, "")
	t.Setenv(common.EnvHighRiskThreshold, "0.8")
	t.Setenv(common.EnvMediumRiskThreshold, "0.5")
	t.Setenv(common.EnvRetrainIntervalDays, "7")
	t.Setenv(common.EnvTreeCount, "50")
	t.Setenv(common.EnvAllowUnknownCategory, "true")
	t.Setenv(common.EnvDataPath, t.TempDir())

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ml.Thresholds{High: 0.8, Medium: 0.5}, s.RiskThresholds())
	assert.Equal(t, 7*24*time.Hour, s.RetrainInterval)
	assert.Equal(t, 50, s.TreeCount)
	assert.True(t, s.AllowUnknownCategory)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
risk:
  highThreshold: 0.75
  mediumThreshold: 0.45
training:
  retrainIntervalDays: 14
  minValidationAccuracy: 0.8
  treeCount: 100
  maxTreeDepth: 10
  seed: 99
records:
  baseURL: http://records.local
  timeout: 10s
system:
  dataPath: /tmp/edurisk
  metricsPort: 9200
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(common.EnvConfigFile, path)

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ml.Thresholds{High: 0.75, Medium: 0.45}, s.RiskThresholds())
	assert.Equal(t, 14*24*time.Hour, s.RetrainInterval)
	assert.Equal(t, 0.8, s.MinValidationAccuracy)
	assert.Equal(t, 100, s.TreeCount)
	assert.Equal(t, int64(99), s.TrainingSeed)
	assert.Equal(t, "http://records.local", s.RecordsBaseURL)
	assert.Equal(t, 10*time.Second, s.RESTTimeout)
	assert.Equal(t, "/tmp/edurisk", s.DataPath)
	assert.Equal(t, 9200, s.MetricsPort)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  highThreshold: 0.75\n  mediumThreshold: 0.45\n"), 0o600))
	t.Setenv(common.EnvConfigFile, path)
	t.Setenv(common.EnvHighRiskThreshold, "0.9")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.9, s.HighRiskThreshold)
	assert.Equal(t, 0.45, s.MediumRiskThreshold)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"swapped thresholds", map[string]string{
			common.EnvHighRiskThreshold:   "0.4",
			common.EnvMediumRiskThreshold: "0.7",
		}},
		{"retrain interval zero", map[string]string{
			common.EnvRetrainIntervalDays: "0",
		}},
		{"tree count too large", map[string]string{
			common.EnvTreeCount: "100000",
		}},
		{"metrics port privileged", map[string]string{
			common.EnvMetricsPort: "80",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(common.EnvConfigFile, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestThresholdErrorType(t *testing.T) {
	t.Setenv(common.EnvConfigFile, "")
	t.Setenv(common.EnvHighRiskThreshold, "0.3")
	t.Setenv(common.EnvMediumRiskThreshold, "0.3")

	_, err := Load()
	var terr *ml.InvalidThresholdError
	assert.True(t, errors.As(err, &terr))
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv(common.EnvConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}
