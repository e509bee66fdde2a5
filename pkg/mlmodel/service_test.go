package mlmodel_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset/datasettest"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel/training"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tracking"
)

type fixture struct {
	service *mlmodel.Service
	store   *storage.FileStore
	tracker *tracking.Client
}

func newFixture(t *testing.T) *fixture {
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
			RareEnc:            []string{"OperatingSystems", "Browser", "Region", "TrafficType"},
			RareEncNCategories: 5,
			RareEncTol:         0.05,
			OneHotEnc:          []string{"Month", "OperatingSystems", "Browser", "Region", "TrafficType", "VisitorType", "Weekend"},
			MinMaxScaler:       features.NumericFeatures(),
		},
		ProcessedDir: cfg.ProcessedDir,
	})
	return &fixture{service: svc, store: store, tracker: tracker}
}

func TestTrainAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reports, err := f.service.TrainAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, len(models.Roster()))

	for i, kind := range models.Roster() {
		r := reports[i]
		assert.Equal(t, kind, r.Kind)
		assert.NotEmpty(t, r.RunID)
		assert.GreaterOrEqual(t, r.Test.F1, 0.0)
		assert.LessOrEqual(t, r.Test.F1, 1.0)

		ok, err := f.store.Exists(ctx, kind.ArtifactName())
		require.NoError(t, err)
		assert.True(t, ok, "artifact for %s", kind)
	}
	ok, err := f.store.Exists(ctx, storage.PipelineArtifact)
	require.NoError(t, err)
	assert.True(t, ok)

	runs, err := f.tracker.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, len(models.Roster()))
	for _, run := range runs {
		assert.Equal(t, models.RunStatusFinished, run.Status)
		assert.Equal(t, run.Name, run.Params["model_name"])
		for _, key := range []string{"train_F1", "test_F1", "train_Recall", "test_Accuracy", "cv_f1_mean"} {
			assert.Contains(t, run.Metrics, key)
		}
		assert.Len(t, run.Artifacts, 2)
	}

	rec, err := f.service.Recommend(reports)
	require.NoError(t, err)
	assert.Contains(t, models.Roster(), rec.Kind)
}

func TestTrainModelIsReloadable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	data, err := f.service.FitPipeline(ctx)
	require.NoError(t, err)
	_, err = f.service.TrainModel(ctx, models.ModelKindDecisionTree, data)
	require.NoError(t, err)

	clf, err := mlmodel.LoadClassifier(ctx, f.store, models.ModelKindDecisionTree.ArtifactName())
	require.NoError(t, err)
	assert.Equal(t, models.ModelKindDecisionTree, clf.Kind())

	proba, err := clf.PredictProba(data.XTest)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, len(data.YTest), r)
	assert.Equal(t, 2, c)
}

func TestTransformedDataRequiresPipeline(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.TransformedData(context.Background())
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)
}

func TestTransformedDataMatchesFit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fitted, err := f.service.FitPipeline(ctx)
	require.NoError(t, err)
	reloaded, err := f.service.TransformedData(ctx)
	require.NoError(t, err)

	assert.Equal(t, fitted.Features, reloaded.Features)
	assert.Equal(t, fitted.YTrain, reloaded.YTrain)
	assert.Equal(t, fitted.XTrain.RawMatrix().Data, reloaded.XTrain.RawMatrix().Data)
}

func TestTrainFinalAndEvaluateHoldout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.FitPipeline(ctx)
	require.NoError(t, err)
	require.NoError(t, f.service.TrainFinal(ctx, training.DefaultLGBMParams()))

	ok, err := f.store.Exists(ctx, storage.FinalModelArtifact)
	require.NoError(t, err)
	assert.True(t, ok)

	metrics, err := f.service.EvaluateHoldout(ctx)
	require.NoError(t, err)
	assert.Greater(t, metrics.F1, 0.5)
}

func TestTrainFinalRejectsInvalidParams(t *testing.T) {
	f := newFixture(t)

	params := training.DefaultLGBMParams()
	params.NumLeaves = 1
	err := f.service.TrainFinal(context.Background(), params)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
