// Package mlmodel orchestrates training: it fits the preprocessing pipeline,
// evaluates the classifier roster, trains the final model and persists
// every artifact.
package mlmodel

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel/training"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/preprocess"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tracking"
)

// Preparer yields the model-development split.
type Preparer interface {
	Prepare(ctx context.Context) (*dataset.Partition, error)
}

// Options tune the training service.
type Options struct {
	Seed         int64
	CVFolds      int
	Encoding     config.EncodingConfig
	ProcessedDir string
}

// TransformedData is the prepared split after the persisted pipeline ran.
type TransformedData struct {
	XTrain   *mat.Dense
	XTest    *mat.Dense
	YTrain   []float64
	YTest    []float64
	Features []string
}

// Service manages model training
type Service struct {
	preparer             Preparer
	store                storage.Store
	tracker              *tracking.Client
	logger               *zap.Logger
	opts                 Options
	recommendationEngine *RecommendationEngine
}

// NewService creates a new training service
func NewService(
	preparer Preparer,
	store storage.Store,
	tracker *tracking.Client,
	logger *zap.Logger,
	opts Options,
) *Service {
	if opts.CVFolds == 0 {
		opts.CVFolds = 10
	}
	return &Service{
		preparer:             preparer,
		store:                store,
		tracker:              tracker,
		logger:               logger,
		opts:                 opts,
		recommendationEngine: NewRecommendationEngine(),
	}
}

// FitPipeline prepares the data, fits a fresh pipeline on the training
// frame, persists it and returns the transformed matrices.
func (s *Service) FitPipeline(ctx context.Context) (*TransformedData, error) {
	part, err := s.preparer.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	pipe := preprocess.Build(s.opts.Encoding)
	trainFrame, err := pipe.FitTransform(part.XTrain)
	if err != nil {
		s.logTransformError("fit_transform", err)
		return nil, err
	}
	XTrain, err := pipe.ToMatrix(trainFrame)
	if err != nil {
		s.logTransformError("fit_transform", err)
		return nil, err
	}
	XTest, err := pipe.TransformMatrix(part.XTest)
	if err != nil {
		s.logTransformError("transform", err)
		return nil, err
	}

	if err := storage.Save(ctx, s.store, storage.PipelineArtifact, pipe); err != nil {
		return nil, err
	}
	s.logger.Info("preprocessing pipeline fitted",
		zap.Int("features", len(pipe.Features)),
		zap.String("artifact", s.store.URI(storage.PipelineArtifact)))

	return &TransformedData{
		XTrain:   XTrain,
		XTest:    XTest,
		YTrain:   part.YTrain,
		YTest:    part.YTest,
		Features: pipe.Features,
	}, nil
}

// TransformedData loads the persisted pipeline, re-prepares the data and
// transforms both frames. A missing pipeline is ErrArtifactNotFound.
func (s *Service) TransformedData(ctx context.Context) (*TransformedData, error) {
	pipe, err := s.loadPipeline(ctx)
	if err != nil {
		return nil, err
	}

	part, err := s.preparer.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	XTrain, err := pipe.TransformMatrix(part.XTrain)
	if err != nil {
		s.logTransformError("transform", err)
		return nil, err
	}
	XTest, err := pipe.TransformMatrix(part.XTest)
	if err != nil {
		s.logTransformError("transform", err)
		return nil, err
	}

	return &TransformedData{
		XTrain:   XTrain,
		XTest:    XTest,
		YTrain:   part.YTrain,
		YTest:    part.YTest,
		Features: pipe.Features,
	}, nil
}

func (s *Service) loadPipeline(ctx context.Context) (*preprocess.Pipeline, error) {
	var pipe preprocess.Pipeline
	if err := storage.Load(ctx, s.store, storage.PipelineArtifact, &pipe); err != nil {
		s.logger.Error("failed to load preprocessing pipeline", zap.Error(err))
		return nil, err
	}
	return &pipe, nil
}

// TrainAll fits the pipeline and evaluates every roster model, one tracked
// run per model.
func (s *Service) TrainAll(ctx context.Context) ([]*models.ModelReport, error) {
	data, err := s.FitPipeline(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*models.ModelReport, 0, len(models.Roster()))
	for _, kind := range models.Roster() {
		report, err := s.TrainModel(ctx, kind, data)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// TrainModel cross-validates kind on the training matrix, fits it on the
// whole of it, scores the held-out matrix and persists the model.
func (s *Service) TrainModel(ctx context.Context, kind models.ModelKind, data *TransformedData) (*models.ModelReport, error) {
	report := &models.ModelReport{Kind: kind}
	newModel := func() (training.Classifier, error) { return training.New(kind, s.opts.Seed) }
	logger := s.logger.With(zap.String("model", string(kind)))

	err := s.tracker.WithRun(ctx, string(kind), func(run *tracking.Run) error {
		report.RunID = run.ID
		if err := run.LogParam(ctx, "model_name", string(kind)); err != nil {
			return err
		}

		start := time.Now()
		cv, err := training.CrossValPredict(ctx, newModel, data.XTrain, data.YTrain, s.opts.CVFolds)
		if err != nil {
			return errors.Wrapf(err, "cross-validate %s", kind)
		}
		if report.Train, err = training.ClassificationMetrics(data.YTrain, cv.Predictions); err != nil {
			return err
		}
		if report.CVF1Mean, report.CVF1Std, err = cv.F1MeanStd(); err != nil {
			return err
		}

		model, err := newModel()
		if err != nil {
			return err
		}
		if err := model.Fit(data.XTrain, data.YTrain); err != nil {
			return errors.Wrapf(err, "fit %s", kind)
		}

		env, err := training.Wrap(model)
		if err != nil {
			return err
		}
		if err := storage.Save(ctx, s.store, kind.ArtifactName(), env); err != nil {
			return err
		}

		pred, err := model.Predict(data.XTest)
		if err != nil {
			return errors.Wrapf(err, "predict %s", kind)
		}
		if report.Test, err = training.ClassificationMetrics(data.YTest, pred); err != nil {
			return err
		}

		metrics := report.Train.Prefixed("train_")
		for k, v := range report.Test.Prefixed("test_") {
			metrics[k] = v
		}
		metrics["cv_f1_mean"] = report.CVF1Mean
		metrics["cv_f1_std"] = report.CVF1Std
		if err := run.LogMetrics(ctx, metrics); err != nil {
			return err
		}
		if err := run.LogArtifact(ctx, s.store.URI(kind.ArtifactName())); err != nil {
			return err
		}
		if err := run.LogArtifact(ctx, s.store.URI(storage.PipelineArtifact)); err != nil {
			return err
		}

		report.TrainedAt = time.Now()
		logger.Info("model evaluated",
			zap.Float64("train_f1", report.Train.F1),
			zap.Float64("test_f1", report.Test.F1),
			zap.Float64("cv_f1_mean", report.CVF1Mean),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	})
	if err != nil {
		logger.Error("model training failed", zap.Error(err))
		return nil, err
	}
	return report, nil
}

// TrainFinal fits the leaf-wise booster with tuned params on the
// transformed training data and persists it as final_model.
func (s *Service) TrainFinal(ctx context.Context, params models.BoostingParams) error {
	if err := params.Validate(); err != nil {
		return errors.Wrap(config.ErrInvalidConfig, err.Error())
	}
	data, err := s.TransformedData(ctx)
	if err != nil {
		return err
	}

	model := training.NewLGBMClassifier(params, s.opts.Seed)
	if err := model.Fit(data.XTrain, data.YTrain); err != nil {
		return errors.Wrap(err, "fit final model")
	}
	env, err := training.Wrap(model)
	if err != nil {
		return err
	}
	if err := storage.Save(ctx, s.store, storage.FinalModelArtifact, env); err != nil {
		return err
	}
	s.logger.Info("final model trained",
		zap.Int("num_leaves", params.NumLeaves),
		zap.String("artifact", s.store.URI(storage.FinalModelArtifact)))
	return nil
}

// EvaluateHoldout scores the persisted final model on the reserved
// test.csv written by the splitter.
func (s *Service) EvaluateHoldout(ctx context.Context) (models.Metrics, error) {
	pipe, err := s.loadPipeline(ctx)
	if err != nil {
		return models.Metrics{}, err
	}
	model, err := LoadClassifier(ctx, s.store, storage.FinalModelArtifact)
	if err != nil {
		return models.Metrics{}, err
	}

	X, y, err := dataset.LoadHoldout(s.opts.ProcessedDir)
	if err != nil {
		return models.Metrics{}, err
	}
	Xm, err := pipe.TransformMatrix(X)
	if err != nil {
		s.logTransformError("transform", err)
		return models.Metrics{}, err
	}
	pred, err := model.Predict(Xm)
	if err != nil {
		return models.Metrics{}, err
	}
	return training.ClassificationMetrics(y, pred)
}

// Recommend picks the best evaluated model.
func (s *Service) Recommend(reports []*models.ModelReport) (*Recommendation, error) {
	return s.recommendationEngine.Recommend(reports)
}

// LoadClassifier restores any persisted roster or final model.
func LoadClassifier(ctx context.Context, store storage.Store, name string) (training.Classifier, error) {
	var env training.Envelope
	if err := storage.Load(ctx, store, name, &env); err != nil {
		return nil, err
	}
	return env.Unwrap()
}

func (s *Service) logTransformError(op string, err error) {
	fields := []zap.Field{zap.String("operation", op), zap.Error(err)}
	var stageErr *preprocess.StageError
	if errors.As(err, &stageErr) {
		fields = append(fields, zap.String("stage", stageErr.Stage), zap.String("variable", stageErr.Variable))
	}
	s.logger.Error("data transformation failed", fields...)
}
