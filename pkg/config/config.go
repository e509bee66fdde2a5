package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment string
	LogLevel    string
	Port        string

	RawDataPath  string
	ProcessedDir string
	ModelsDir    string

	ProcessConfigPath string
	ModelConfigPath   string

	TrackingDB string
	Experiment string

	ArtifactStore string
	Bucket        string
	Region        string
	S3Endpoint    string

	Seed            int64
	TestSize        float64
	CVFolds         int
	NTrials         int
	OptimizeTimeout time.Duration

	KubeNamespace string
	TrainerImage  string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnv("PORT", "8080"),
		RawDataPath:       getEnv("RAW_DATA_PATH", "data/raw/data.csv"),
		ProcessedDir:      getEnv("PROCESSED_DIR", "data/processed"),
		ModelsDir:         getEnv("MODELS_DIR", "models"),
		ProcessConfigPath: getEnv("PROCESS_CONFIG", "config/process/process.yaml"),
		ModelConfigPath:   getEnv("MODEL_CONFIG", "config/model/model.yaml"),
		TrackingDB:        getEnv("TRACKING_DB", "mlflow.db"),
		Experiment:        getEnv("EXPERIMENT_NAME", "customer_intention"),
		ArtifactStore:     getEnv("ARTIFACT_STORE", "s3"),
		Bucket:            getEnv("ARTIFACT_BUCKET", "models_customer_intention"),
		Region:            getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		Seed:              int64(getEnvAsInt("SEED", 42)),
		TestSize:          getEnvAsFloat("TEST_SIZE", 0.3),
		CVFolds:           getEnvAsInt("CV_FOLDS", 10),
		NTrials:           getEnvAsInt("N_TRIALS", 2),
		OptimizeTimeout:   time.Duration(getEnvAsInt("OPTIMIZE_TIMEOUT", 600)) * time.Second,
		KubeNamespace:     getEnv("KUBE_NAMESPACE", "customer-intention"),
		TrainerImage:      getEnv("TRAINER_IMAGE", "customer-intention/trainer:latest"),
	}

	if config.TestSize <= 0 || config.TestSize >= 1 {
		return nil, fmt.Errorf("TEST_SIZE must be in (0, 1), got %g", config.TestSize)
	}
	if config.CVFolds < 2 {
		return nil, fmt.Errorf("CV_FOLDS must be >= 2, got %d", config.CVFolds)
	}
	if config.NTrials < 1 {
		return nil, fmt.Errorf("N_TRIALS must be >= 1, got %d", config.NTrials)
	}
	switch config.ArtifactStore {
	case "s3", "local":
	default:
		return nil, fmt.Errorf("ARTIFACT_STORE must be s3 or local, got %q", config.ArtifactStore)
	}

	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
