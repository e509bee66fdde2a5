package tuning_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset/datasettest"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tracking"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tuning"
)

func setup(t *testing.T) (*mlmodel.Service, *tracking.Client, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := datasettest.WriteRaw(t, dir, 200)

	store, err := storage.NewFileStore(filepath.Join(dir, "models"))
	require.NoError(t, err)
	tracker, err := tracking.NewClient(context.Background(), filepath.Join(dir, "mlflow.db"), "customer_intention", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	preparer := dataset.NewPreparer(dataset.NewSplitter(cfg, zap.NewNop()), zap.NewNop())
	svc := mlmodel.NewService(preparer, store, tracker, zap.NewNop(), mlmodel.Options{
		Seed:    42,
		CVFolds: 3,
		Encoding: config.EncodingConfig{
			OneHotEnc:    []string{"Month", "OperatingSystems", "Browser", "Region", "TrafficType", "VisitorType", "Weekend"},
			MinMaxScaler: features.NumericFeatures(),
		},
		ProcessedDir: cfg.ProcessedDir,
	})
	return svc, tracker, filepath.Join(dir, "config", "model", "model.yaml")
}

func TestOptimizerWritesBestParams(t *testing.T) {
	ctx := context.Background()
	svc, tracker, configPath := setup(t)
	_, err := svc.FitPipeline(ctx)
	require.NoError(t, err)

	opt := tuning.NewOptimizer(svc, tracker, zap.NewNop(), tuning.Options{
		NTrials:    3,
		Timeout:    time.Minute,
		ConfigPath: configPath,
		Seed:       42,
	})
	res, err := opt.Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Trials, 3)
	for _, tr := range res.Trials {
		assert.GreaterOrEqual(t, res.Best.Value, tr.Value)
	}

	saved, err := config.LoadModelConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, res.Params, saved.Params)

	runs, err := tracker.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	for _, run := range runs {
		assert.Contains(t, run.Metrics, "f1")
		assert.Len(t, run.Params, 7)
	}

	require.NoError(t, svc.TrainFinal(ctx, saved.Params))
}

func TestOptimizerRequiresPipeline(t *testing.T) {
	svc, tracker, configPath := setup(t)
	opt := tuning.NewOptimizer(svc, tracker, zap.NewNop(), tuning.Options{
		NTrials:    2,
		Timeout:    time.Minute,
		ConfigPath: configPath,
	})

	_, err := opt.Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)
	assert.NoFileExists(t, configPath)
}
