package main

import (
	"context"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/logging"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tracking"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tuning"
)

// app wires every pipeline stage from the environment.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	splitter *dataset.Splitter
	store    *storage.FileStore
	tracker  *tracking.Client
	service  *mlmodel.Service
}

func newApp(ctx context.Context) (*app, error) {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	process, err := config.LoadProcessConfig(cfg.ProcessConfigPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFileStore(cfg.ModelsDir)
	if err != nil {
		return nil, err
	}
	tracker, err := tracking.NewClient(ctx, cfg.TrackingDB, cfg.Experiment, logger)
	if err != nil {
		return nil, err
	}

	splitter := dataset.NewSplitter(dataset.SplitConfig{
		RawPath:      cfg.RawDataPath,
		ProcessedDir: cfg.ProcessedDir,
		TestSize:     cfg.TestSize,
		Seed:         cfg.Seed,
	}, logger)
	preparer := dataset.NewPreparer(splitter, logger)

	service := mlmodel.NewService(preparer, store, tracker, logger, mlmodel.Options{
		Seed:         cfg.Seed,
		CVFolds:      cfg.CVFolds,
		Encoding:     process.Encoding,
		ProcessedDir: cfg.ProcessedDir,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		splitter: splitter,
		store:    store,
		tracker:  tracker,
		service:  service,
	}, nil
}

func (a *app) Close() {
	if err := a.tracker.Close(); err != nil {
		a.logger.Warn("failed to close tracking store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) optimizer(nTrials int) *tuning.Optimizer {
	return tuning.NewOptimizer(a.service, a.tracker, a.logger, tuning.Options{
		NTrials:    nTrials,
		Timeout:    a.cfg.OptimizeTimeout,
		ConfigPath: a.cfg.ModelConfigPath,
		Seed:       a.cfg.Seed,
	})
}

// trainFinal reads the tuned params and fits the final model.
func (a *app) trainFinal(ctx context.Context) error {
	modelCfg, err := config.LoadModelConfig(a.cfg.ModelConfigPath)
	if err != nil {
		return err
	}
	return a.service.TrainFinal(ctx, modelCfg.Params)
}

// publish pushes the serving artifacts to the remote bucket.
func (a *app) publish(ctx context.Context) error {
	remote, err := storage.NewS3Store(ctx, a.cfg.Bucket, a.cfg.Region, a.cfg.S3Endpoint)
	if err != nil {
		return err
	}
	if err := storage.Publish(ctx, a.store, remote, storage.PipelineArtifact, storage.FinalModelArtifact); err != nil {
		return err
	}
	a.logger.Info("artifacts published", zap.String("bucket", a.cfg.Bucket))
	return nil
}

// runAll is the full retraining pipeline.
func (a *app) runAll(ctx context.Context) error {
	reports, err := a.service.TrainAll(ctx)
	if err != nil {
		return err
	}
	if rec, err := a.service.Recommend(reports); err == nil {
		a.logger.Info("best roster model", zap.String("model", string(rec.Kind)), zap.Float64("test_f1", rec.Score))
	}
	if _, err := a.optimizer(a.cfg.NTrials).Run(ctx); err != nil {
		return err
	}
	if err := a.trainFinal(ctx); err != nil {
		return err
	}
	if a.cfg.ArtifactStore == "s3" {
		return a.publish(ctx)
	}
	return nil
}
