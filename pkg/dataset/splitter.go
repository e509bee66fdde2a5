package dataset

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

const (
	TrainFile = "train.csv"
	TestFile  = "test.csv"
)

// SplitConfig locates the raw and processed data.
type SplitConfig struct {
	RawPath      string
	ProcessedDir string
	TestSize     float64
	Seed         int64
}

// Splitter performs the first stratified split of the raw dataset and
// writes train.csv and test.csv. test.csv is the reserved final holdout.
type Splitter struct {
	cfg    SplitConfig
	logger *zap.Logger
}

// NewSplitter creates a splitter.
func NewSplitter(cfg SplitConfig, logger *zap.Logger) *Splitter {
	return &Splitter{cfg: cfg, logger: logger}
}

// Config returns the splitter's configuration.
func (s *Splitter) Config() SplitConfig { return s.cfg }

// LoadRaw reads the full raw dataset.
func (s *Splitter) LoadRaw() ([]*models.SessionRecord, error) {
	records, err := ReadSessions(s.cfg.RawPath)
	if err != nil {
		return nil, errors.Wrap(err, "load raw dataset")
	}
	return records, nil
}

// Split builds the Month_Revenue key, splits and overwrites the processed
// files. Both files keep the key column.
func (s *Splitter) Split(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := s.LoadRaw()
	if err != nil {
		return err
	}

	strata := make([]string, len(records))
	for i, r := range records {
		r.ToSplit = StratKeyOf(r)
		strata[i] = r.ToSplit
	}

	trainIdx, testIdx, err := StratifiedSplit(strata, s.cfg.TestSize, s.cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "split raw dataset")
	}

	trainPath := filepath.Join(s.cfg.ProcessedDir, TrainFile)
	testPath := filepath.Join(s.cfg.ProcessedDir, TestFile)
	if err := WriteSessions(trainPath, pick(records, trainIdx)); err != nil {
		return err
	}
	if err := WriteSessions(testPath, pick(records, testIdx)); err != nil {
		return err
	}

	s.logger.Info("raw dataset split",
		zap.Int("rows", len(records)),
		zap.Int("train_rows", len(trainIdx)),
		zap.Int("test_rows", len(testIdx)),
		zap.String("dir", s.cfg.ProcessedDir))
	return nil
}

func pick(records []*models.SessionRecord, idx []int) []*models.SessionRecord {
	out := make([]*models.SessionRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
