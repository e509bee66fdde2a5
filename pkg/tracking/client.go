// Package tracking records experiment runs (parameters, metrics and
// artifact locations) in a local SQLite database.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// ErrRunActive is returned by StartRun while another run is still open.
var ErrRunActive = errors.New("a run is already active")

// ErrRunEnded is returned when logging to a run that has been closed.
var ErrRunEnded = errors.New("run has ended")

// Client is bound to a single experiment and allows one open run at a time.
type Client struct {
	db           *sql.DB
	experimentID string
	experiment   string
	logger       *zap.Logger

	mu     sync.Mutex
	active *Run
}

// NewClient opens (or creates) the tracking database at dbPath and ensures
// the experiment exists.
func NewClient(ctx context.Context, dbPath, experiment string, logger *zap.Logger) (*Client, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open tracking database")
	}
	// writes are serialized by SQLite anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to tracking database")
	}

	c := &Client{db: db, experiment: experiment, logger: logger}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	if err := c.ensureExperiment(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Experiment returns the experiment name the client logs to.
func (c *Client) Experiment() string {
	return c.experiment
}

func (c *Client) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		FOREIGN KEY (experiment_id) REFERENCES experiments(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_experiment_id ON runs(experiment_id);

	CREATE TABLE IF NOT EXISTS params (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS metrics (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value REAL NOT NULL,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_run_id ON metrics(run_id);

	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (run_id, path),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

func (c *Client) ensureExperiment(ctx context.Context) error {
	err := c.db.QueryRowContext(ctx, `SELECT id FROM experiments WHERE name = ?`, c.experiment).Scan(&c.experimentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(err, "failed to look up experiment %s", c.experiment)
	}

	c.experimentID = uuid.New().String()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO experiments (id, name, created_at) VALUES (?, ?, ?)`,
		c.experimentID, c.experiment, formatTime(time.Now()))
	return errors.Wrapf(err, "failed to create experiment %s", c.experiment)
}

// StartRun opens a new run. Only one run may be open at a time.
func (c *Client) StartRun(ctx context.Context, name string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, errors.Wrapf(ErrRunActive, "cannot start %q while %q is open", name, c.active.Name)
	}

	run := &Run{ID: uuid.New().String(), Name: name, client: c}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment_id, name, status, start_time) VALUES (?, ?, ?, ?, ?)`,
		run.ID, c.experimentID, name, string(models.RunStatusRunning), formatTime(time.Now()))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start run %s", name)
	}

	c.active = run
	c.logger.Debug("tracking run started", zap.String("run", name), zap.String("run_id", run.ID))
	return run, nil
}

// WithRun opens a run, hands it to fn and always closes it: FINISHED when fn
// returns nil, FAILED when it returns an error or panics.
func (c *Client) WithRun(ctx context.Context, name string, fn func(*Run) error) (err error) {
	run, err := c.StartRun(ctx, name)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			// use a fresh context, ctx may already be cancelled
			_ = run.End(context.Background(), models.RunStatusFailed)
			panic(r)
		}
		status := models.RunStatusFinished
		if err != nil {
			status = models.RunStatusFailed
		}
		if endErr := run.End(context.Background(), status); endErr != nil && err == nil {
			err = endErr
		}
	}()

	return fn(run)
}

func (c *Client) release(run *Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == run {
		c.active = nil
	}
}

// ListRuns returns every run of the experiment, oldest first.
func (c *Client) ListRuns(ctx context.Context) ([]*models.TrackedRun, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, status, start_time, end_time FROM runs WHERE experiment_id = ? ORDER BY start_time, rowid`,
		c.experimentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*models.TrackedRun
	for rows.Next() {
		var (
			run    models.TrackedRun
			status string
			start  string
			end    sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Name, &status, &start, &end); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		run.Experiment = c.experiment
		run.Status = models.RunStatus(status)
		run.StartTime = parseTime(start)
		if end.Valid {
			t := parseTime(end.String)
			run.EndTime = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		if err := c.loadRunData(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (c *Client) loadRunData(ctx context.Context, run *models.TrackedRun) error {
	run.Params = make(map[string]string)
	run.Metrics = make(map[string]float64)

	params, err := c.db.QueryContext(ctx, `SELECT key, value FROM params WHERE run_id = ?`, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to load params")
	}
	for params.Next() {
		var k, v string
		if err := params.Scan(&k, &v); err != nil {
			params.Close()
			return err
		}
		run.Params[k] = v
	}
	params.Close()

	// latest value wins when a key was logged more than once
	metrics, err := c.db.QueryContext(ctx, `SELECT key, value FROM metrics WHERE run_id = ? ORDER BY rowid`, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to load metrics")
	}
	for metrics.Next() {
		var k string
		var v float64
		if err := metrics.Scan(&k, &v); err != nil {
			metrics.Close()
			return err
		}
		run.Metrics[k] = v
	}
	metrics.Close()

	artifacts, err := c.db.QueryContext(ctx, `SELECT path FROM artifacts WHERE run_id = ?`, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to load artifacts")
	}
	for artifacts.Next() {
		var p string
		if err := artifacts.Scan(&p); err != nil {
			artifacts.Close()
			return err
		}
		run.Artifacts = append(run.Artifacts, p)
	}
	artifacts.Close()
	sort.Strings(run.Artifacts)
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
