package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("N_TRIALS", "25")
	t.Setenv("OPTIMIZE_TIMEOUT", "30")
	t.Setenv("ARTIFACT_STORE", "local")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.NTrials != 25 {
		t.Errorf("Expected NTrials 25, got %d", cfg.NTrials)
	}
	if cfg.OptimizeTimeout != 30*time.Second {
		t.Errorf("Expected OptimizeTimeout 30s, got %s", cfg.OptimizeTimeout)
	}
	if cfg.ArtifactStore != "local" {
		t.Errorf("Expected ArtifactStore 'local', got '%s'", cfg.ArtifactStore)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Seed != 42 {
		t.Errorf("Expected default seed 42, got %d", cfg.Seed)
	}
	if cfg.TestSize != 0.3 {
		t.Errorf("Expected default test size 0.3, got %g", cfg.TestSize)
	}
	if cfg.CVFolds != 10 {
		t.Errorf("Expected default CV folds 10, got %d", cfg.CVFolds)
	}
	if cfg.NTrials != 2 {
		t.Errorf("Expected default NTrials 2, got %d", cfg.NTrials)
	}
	if cfg.OptimizeTimeout != 600*time.Second {
		t.Errorf("Expected default timeout 600s, got %s", cfg.OptimizeTimeout)
	}
	if cfg.Bucket != "models_customer_intention" {
		t.Errorf("Expected default bucket, got '%s'", cfg.Bucket)
	}
	if cfg.Experiment != "customer_intention" {
		t.Errorf("Expected default experiment, got '%s'", cfg.Experiment)
	}
}

func TestLoadConfigRejectsBadTestSize(t *testing.T) {
	t.Setenv("TEST_SIZE", "1.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for TEST_SIZE outside (0, 1)")
	}
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("CV_FOLDS", "ten")
	if got := getEnvAsInt("CV_FOLDS", 10); got != 10 {
		t.Errorf("Expected fallback 10, got %d", got)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadProcessConfig(t *testing.T) {
	path := writeFile(t, "process.yaml", `
encoding:
  rare_enc: [OperatingSystems, Browser, Region, TrafficType]
  rare_enc_n_categories: 5
  onehot_enc: [Month, OperatingSystems, Browser, Region, TrafficType, VisitorType, Weekend]
  minmax_scaler: [Administrative, ExitRates]
`)
	cfg, err := LoadProcessConfig(path)
	if err != nil {
		t.Fatalf("LoadProcessConfig: %v", err)
	}
	if len(cfg.Encoding.RareEnc) != 4 {
		t.Errorf("Expected 4 rare variables, got %d", len(cfg.Encoding.RareEnc))
	}
	if cfg.Encoding.RareEncNCategories != 5 {
		t.Errorf("Expected n_categories 5, got %d", cfg.Encoding.RareEncNCategories)
	}
	if cfg.Encoding.RareEncTol != DefaultRareTol {
		t.Errorf("Expected default tol, got %g", cfg.Encoding.RareEncTol)
	}
	if cfg.Encoding.OneHotEnc[0] != "Month" {
		t.Errorf("Expected first one-hot variable Month, got %s", cfg.Encoding.OneHotEnc[0])
	}
}

func TestLoadProcessConfigRejectsScaledOneHot(t *testing.T) {
	path := writeFile(t, "process.yaml", `
encoding:
  onehot_enc: [Month]
  minmax_scaler: [Month]
`)
	_, err := LoadProcessConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadProcessConfigRejectsUnknownKey(t *testing.T) {
	path := writeFile(t, "process.yaml", `
enconding:
  onehot_enc: [Month]
  minmax_scaler: [ExitRates]
`)
	if _, err := LoadProcessConfig(path); err == nil {
		t.Fatal("Expected error for misspelled encoding key")
	}
}

func TestLoadProcessConfigRejectsEmptyStages(t *testing.T) {
	cases := map[string]string{
		"onehot": `
encoding:
  minmax_scaler: [ExitRates]
`,
		"scaler": `
encoding:
  onehot_enc: [Month]
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadProcessConfig(writeFile(t, "process.yaml", body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadProcessConfigShippedFile(t *testing.T) {
	cfg, err := LoadProcessConfig(filepath.Join("..", "..", "config", "process", "process.yaml"))
	if err != nil {
		t.Fatalf("LoadProcessConfig: %v", err)
	}
	if len(cfg.Encoding.MinMaxScaler) != 10 {
		t.Errorf("Expected 10 scaled variables, got %d", len(cfg.Encoding.MinMaxScaler))
	}
}

func TestLoadProcessConfigMissingFile(t *testing.T) {
	_, err := LoadProcessConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestModelConfigOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model", "model.yaml")
	first := models.BoostingParams{
		BaggingFraction: 0.5, BaggingFreq: 2, FeatureFraction: 0.6,
		LambdaL1: 0.1, LambdaL2: 0.2, MinChildSamples: 10, NumLeaves: 8,
	}
	second := first
	second.NumLeaves = 64

	if err := SaveModelConfig(path, first); err != nil {
		t.Fatalf("SaveModelConfig: %v", err)
	}
	if err := SaveModelConfig(path, second); err != nil {
		t.Fatalf("SaveModelConfig: %v", err)
	}

	cfg, err := LoadModelConfig(path)
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if cfg.Params != second {
		t.Errorf("Expected %+v, got %+v", second, cfg.Params)
	}
}

func TestLoadModelConfigInvalid(t *testing.T) {
	path := writeFile(t, "model.yaml", `
params:
  bagging_fraction: 0.5
  bagging_freq: 1
  feature_fraction: 0.5
  lambda_l1: 0.0
  lambda_l2: 0.0
  min_child_samples: 5
  num_leaves: 1
`)
	_, err := LoadModelConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}
