package tuning

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoTrials is returned by BestTrial before any trial completed.
var ErrNoTrials = errors.New("no completed trials")

// TrialState is the outcome of a trial.
type TrialState string

const (
	TrialComplete TrialState = "COMPLETE"
	TrialFail     TrialState = "FAIL"
)

// Trial is one sampled configuration and its score.
type Trial struct {
	Number   int                `json:"number"`
	Params   map[string]float64 `json:"params"`
	Value    float64            `json:"value"`
	State    TrialState         `json:"state"`
	Duration time.Duration      `json:"duration"`
}

// Objective scores a trial; higher is better.
type Objective func(ctx context.Context, trial *Trial) (float64, error)

// Study runs trials sequentially and keeps their history.
type Study struct {
	Name string

	space   []Param
	sampler Sampler
	logger  *zap.Logger
	trials  []*Trial
}

// NewStudy creates a maximising study over space.
func NewStudy(name string, space []Param, sampler Sampler, logger *zap.Logger) *Study {
	return &Study{Name: name, space: space, sampler: sampler, logger: logger}
}

// Trials returns every trial run so far.
func (s *Study) Trials() []*Trial {
	return s.trials
}

// Optimize runs up to nTrials trials. The timeout is checked before each
// trial starts; a running trial is never interrupted. An objective error
// aborts the study and is returned.
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int, timeout time.Duration) error {
	budget, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for i := 0; i < nTrials; i++ {
		if budget.Err() != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Info("study timed out", zap.String("study", s.Name), zap.Int("trials", len(s.trials)))
			return nil
		}

		trial := &Trial{
			Number: len(s.trials),
			Params: s.sampler.Sample(s.space, s.trials),
		}
		start := time.Now()
		value, err := objective(ctx, trial)
		trial.Duration = time.Since(start)
		s.trials = append(s.trials, trial)
		if err != nil {
			trial.State = TrialFail
			s.logger.Error("trial failed", zap.String("study", s.Name), zap.Int("trial", trial.Number), zap.Error(err))
			return errors.Wrapf(err, "trial %d", trial.Number)
		}
		trial.Value = value
		trial.State = TrialComplete
		s.logger.Info("trial finished",
			zap.String("study", s.Name),
			zap.Int("trial", trial.Number),
			zap.Float64("value", value),
			zap.Duration("elapsed", trial.Duration))
	}
	return nil
}

// BestTrial returns the completed trial with the highest value. The
// earliest trial wins ties.
func (s *Study) BestTrial() (*Trial, error) {
	var best *Trial
	for _, t := range s.trials {
		if t.State != TrialComplete {
			continue
		}
		if best == nil || t.Value > best.Value {
			best = t
		}
	}
	if best == nil {
		return nil, ErrNoTrials
	}
	return best, nil
}
