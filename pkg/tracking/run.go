package tracking

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// Run is an open tracked run. Obtain one from Client.StartRun or WithRun.
type Run struct {
	ID   string
	Name string

	client *Client
	ended  bool
}

func (r *Run) check() error {
	r.client.mu.Lock()
	defer r.client.mu.Unlock()
	if r.ended {
		return errors.Wrapf(ErrRunEnded, "run %s", r.Name)
	}
	return nil
}

// LogParam records a single parameter; re-logging a key overwrites it.
func (r *Run) LogParam(ctx context.Context, key, value string) error {
	if err := r.check(); err != nil {
		return err
	}
	_, err := r.client.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO params (run_id, key, value) VALUES (?, ?, ?)`, r.ID, key, value)
	return errors.Wrapf(err, "failed to log param %s", key)
}

// LogParams records several parameters.
func (r *Run) LogParams(ctx context.Context, params map[string]string) error {
	for k, v := range params {
		if err := r.LogParam(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// LogMetrics records a batch of metrics at the current time.
func (r *Run) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	if err := r.check(); err != nil {
		return err
	}
	now := formatTime(time.Now())
	for k, v := range metrics {
		if _, err := r.client.db.ExecContext(ctx,
			`INSERT INTO metrics (run_id, key, value, timestamp) VALUES (?, ?, ?, ?)`, r.ID, k, v, now); err != nil {
			return errors.Wrapf(err, "failed to log metric %s", k)
		}
	}
	return nil
}

// LogArtifact records the location of an artifact produced by the run.
func (r *Run) LogArtifact(ctx context.Context, uri string) error {
	if err := r.check(); err != nil {
		return err
	}
	_, err := r.client.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO artifacts (run_id, path) VALUES (?, ?)`, r.ID, uri)
	return errors.Wrapf(err, "failed to log artifact %s", uri)
}

// End closes the run with status. Ending twice is a no-op.
func (r *Run) End(ctx context.Context, status models.RunStatus) error {
	r.client.mu.Lock()
	if r.ended {
		r.client.mu.Unlock()
		return nil
	}
	r.ended = true
	r.client.mu.Unlock()
	defer r.client.release(r)

	_, err := r.client.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE id = ?`, string(status), formatTime(time.Now()), r.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to end run %s", r.Name)
	}
	r.client.logger.Debug("tracking run ended", zap.String("run", r.Name), zap.String("status", string(status)))
	return nil
}
