package tuning

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel/training"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/tracking"
)

// StudyName names the booster study.
const StudyName = "optimization_LGBM"

// DataSource yields transformed data through the persisted pipeline.
type DataSource interface {
	TransformedData(ctx context.Context) (*mlmodel.TransformedData, error)
}

// Options bound the search.
type Options struct {
	NTrials    int
	Timeout    time.Duration
	ConfigPath string
	Seed       int64
}

// Result is the outcome of an optimization.
type Result struct {
	Best   *Trial
	Params models.BoostingParams
	Trials []*Trial
}

// Optimizer tunes the final booster and writes the winning params.
type Optimizer struct {
	data    DataSource
	tracker *tracking.Client
	logger  *zap.Logger
	opts    Options
}

// NewOptimizer creates an optimizer.
func NewOptimizer(data DataSource, tracker *tracking.Client, logger *zap.Logger, opts Options) *Optimizer {
	if opts.NTrials == 0 {
		opts.NTrials = 2
	}
	if opts.Timeout == 0 {
		opts.Timeout = 600 * time.Second
	}
	return &Optimizer{data: data, tracker: tracker, logger: logger, opts: opts}
}

// Run searches the booster space and overwrites the model config with the
// best trial's params.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	study := NewStudy(StudyName, BoosterSpace(), NewTPESampler(o.opts.Seed), o.logger)
	if err := study.Optimize(ctx, o.objective, o.opts.NTrials, o.opts.Timeout); err != nil {
		return nil, err
	}

	best, err := study.BestTrial()
	if err != nil {
		return nil, err
	}
	params := ParamsFromValues(best.Params)
	if err := config.SaveModelConfig(o.opts.ConfigPath, params); err != nil {
		return nil, err
	}
	o.logger.Info("best params saved",
		zap.Int("trial", best.Number),
		zap.Float64("f1", best.Value),
		zap.String("path", o.opts.ConfigPath))

	return &Result{Best: best, Params: params, Trials: study.Trials()}, nil
}

func (o *Optimizer) objective(ctx context.Context, trial *Trial) (float64, error) {
	data, err := o.data.TransformedData(ctx)
	if err != nil {
		return 0, err
	}

	params := ParamsFromValues(trial.Params)
	model := training.NewLGBMClassifier(params, o.opts.Seed)
	if err := model.Fit(data.XTrain, data.YTrain); err != nil {
		return 0, err
	}
	proba, err := model.PredictProba(data.XTest)
	if err != nil {
		return 0, err
	}
	p1 := training.PositiveProba(proba)
	pred := make([]float64, len(p1))
	for i, p := range p1 {
		pred[i] = math.RoundToEven(p)
	}
	metrics, err := training.ClassificationMetrics(data.YTest, pred)
	if err != nil {
		return 0, err
	}
	f1 := math.Round(metrics.F1*1e4) / 1e4

	err = o.tracker.WithRun(ctx, fmt.Sprint(trial.Number), func(run *tracking.Run) error {
		if err := run.LogParams(ctx, params.AsStrings()); err != nil {
			return err
		}
		return run.LogMetrics(ctx, map[string]float64{"f1": f1})
	})
	return f1, err
}
