package dataset

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
)

// Partition is the second-level split used for model selection.
type Partition struct {
	XTrain *Frame
	XTest  *Frame
	YTrain []float64
	YTest  []float64
}

// Preparer re-runs the splitter, reloads train.csv and splits it again into
// the frames every training step consumes.
type Preparer struct {
	splitter *Splitter
	logger   *zap.Logger
}

// NewPreparer creates a preparer on top of splitter.
func NewPreparer(splitter *Splitter, logger *zap.Logger) *Preparer {
	return &Preparer{splitter: splitter, logger: logger}
}

// Prepare returns XTrain, XTest, yTrain and yTest. The stratification key is
// dropped from both feature frames.
func (p *Preparer) Prepare(ctx context.Context) (*Partition, error) {
	if err := p.splitter.Split(ctx); err != nil {
		return nil, err
	}

	cfg := p.splitter.Config()
	records, err := ReadSessions(filepath.Join(cfg.ProcessedDir, TrainFile))
	if err != nil {
		return nil, errors.Wrap(err, "reload training split")
	}

	X, y, err := FrameFromSessions(records, true)
	if err != nil {
		return nil, err
	}
	strata, ok := X.Column(features.StratKey)
	if !ok {
		return nil, errors.Errorf("training frame is missing %s column", features.StratKey)
	}

	trainIdx, testIdx, err := StratifiedSplit(strata.Cat, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "split training data")
	}

	part := &Partition{
		XTrain: X.Take(trainIdx).Drop(features.StratKey),
		XTest:  X.Take(testIdx).Drop(features.StratKey),
		YTrain: TakeLabels(y, trainIdx),
		YTest:  TakeLabels(y, testIdx),
	}
	p.logger.Debug("data prepared",
		zap.Int("train_rows", part.XTrain.Len()),
		zap.Int("test_rows", part.XTest.Len()),
		zap.Int("features", len(part.XTrain.Columns())))
	return part, nil
}

// LoadHoldout reads the reserved test.csv written by the splitter.
func LoadHoldout(processedDir string) (*Frame, []float64, error) {
	records, err := ReadSessions(filepath.Join(processedDir, TestFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "load holdout")
	}
	return FrameFromSessions(records, false)
}
