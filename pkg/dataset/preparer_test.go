package dataset_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset/datasettest"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

func TestSplitterWritesBothFiles(t *testing.T) {
	cfg := datasettest.WriteRaw(t, t.TempDir(), 100)
	splitter := dataset.NewSplitter(cfg, zap.NewNop())

	require.NoError(t, splitter.Split(context.Background()))

	train, err := dataset.ReadSessions(filepath.Join(cfg.ProcessedDir, dataset.TrainFile))
	require.NoError(t, err)
	test, err := dataset.ReadSessions(filepath.Join(cfg.ProcessedDir, dataset.TestFile))
	require.NoError(t, err)

	assert.Len(t, train, 70)
	assert.Len(t, test, 30)
	for _, r := range append(train, test...) {
		assert.Equal(t, dataset.StratKeyOf(r), r.ToSplit)
	}
}

func TestSplitterIsIdempotent(t *testing.T) {
	cfg := datasettest.WriteRaw(t, t.TempDir(), 100)
	splitter := dataset.NewSplitter(cfg, zap.NewNop())
	path := filepath.Join(cfg.ProcessedDir, dataset.TrainFile)

	require.NoError(t, splitter.Split(context.Background()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, splitter.Split(context.Background()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplitterMissingRawFile(t *testing.T) {
	dir := t.TempDir()
	splitter := dataset.NewSplitter(dataset.SplitConfig{
		RawPath:      filepath.Join(dir, "raw", "data.csv"),
		ProcessedDir: filepath.Join(dir, "processed"),
		TestSize:     0.3,
		Seed:         42,
	}, zap.NewNop())

	err := splitter.Split(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPreparerShapes(t *testing.T) {
	cfg := datasettest.WriteRaw(t, t.TempDir(), 100)
	preparer := dataset.NewPreparer(dataset.NewSplitter(cfg, zap.NewNop()), zap.NewNop())

	part, err := preparer.Prepare(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 49, part.XTrain.Len())
	assert.Equal(t, 21, part.XTest.Len())
	assert.Len(t, part.YTrain, 49)
	assert.Len(t, part.YTest, 21)

	assert.NotContains(t, part.XTrain.Columns(), features.StratKey)
	assert.NotContains(t, part.XTest.Columns(), features.StratKey)
	assert.NotContains(t, part.XTrain.Columns(), features.Label)
	assert.Len(t, part.XTrain.Columns(), 17)

	for _, name := range features.CategoricalFeatures() {
		col, ok := part.XTrain.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, dataset.Categorical, col.Kind, name)
	}
	for _, y := range append(part.YTrain, part.YTest...) {
		assert.Contains(t, []float64{0, 1}, y)
	}
}

func TestPreparerIsDeterministic(t *testing.T) {
	cfg := datasettest.WriteRaw(t, t.TempDir(), 120)
	preparer := dataset.NewPreparer(dataset.NewSplitter(cfg, zap.NewNop()), zap.NewNop())

	a, err := preparer.Prepare(context.Background())
	require.NoError(t, err)
	b, err := preparer.Prepare(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.YTrain, b.YTrain)
	colA, _ := a.XTrain.Column("PageValues")
	colB, _ := b.XTrain.Column("PageValues")
	assert.Equal(t, colA.Num, colB.Num)
}

func TestLoadHoldout(t *testing.T) {
	cfg := datasettest.WriteRaw(t, t.TempDir(), 100)
	require.NoError(t, dataset.NewSplitter(cfg, zap.NewNop()).Split(context.Background()))

	X, y, err := dataset.LoadHoldout(cfg.ProcessedDir)
	require.NoError(t, err)
	assert.Equal(t, 30, X.Len())
	assert.Len(t, y, 30)
	assert.NotContains(t, X.Columns(), features.StratKey)

	weekend, ok := X.Column("Weekend")
	require.True(t, ok)
	for _, v := range weekend.Cat {
		assert.Contains(t, []string{"True", "False"}, v)
	}
}

// writeBalancedRaw writes 100 sessions over three months with Revenue
// alternating, using only the raw dataset columns (no to_split).
func writeBalancedRaw(t *testing.T, dir string) (dataset.SplitConfig, []*models.SessionRecord) {
	t.Helper()
	months := []string{"Mar", "May", "Nov"}
	records := make([]*models.SessionRecord, 100)
	for i := range records {
		records[i] = &models.SessionRecord{
			Administrative:         float64(i),
			AdministrativeDuration: float64(i) * 1.5,
			Informational:          float64(i % 4),
			InformationalDuration:  float64(i % 7),
			ProductRelated:         float64(1 + i%40),
			ProductRelatedDuration: float64(i) * 12.25,
			BounceRates:            0.01,
			ExitRates:              0.05,
			PageValues:             float64(i % 9),
			SpecialDay:             0,
			Month:                  months[(i/2)%len(months)],
			OperatingSystems:       1 + i%2,
			Browser:                1 + i%2,
			Region:                 1 + i%3,
			TrafficType:            1 + i%2,
			VisitorType:            "Returning_Visitor",
			Weekend:                i%4 == 0,
			Revenue:                i%2 == 0,
		}
	}

	header := append(features.RequestFields(), features.Label)
	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, r := range records {
		row := make([]string, 0, len(header))
		for _, name := range header {
			if v, ok := r.Numeric(name); ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
				continue
			}
			raw, ok := r.Raw(name)
			require.True(t, ok, name)
			row = append(row, features.FormatCategory(raw))
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}

	cfg := dataset.SplitConfig{
		RawPath:      filepath.Join(dir, "raw", "data.csv"),
		ProcessedDir: filepath.Join(dir, "processed"),
		TestSize:     0.3,
		Seed:         42,
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.RawPath), 0755))
	require.NoError(t, os.WriteFile(cfg.RawPath, []byte(b.String()), 0644))
	return cfg, records
}

func sessionKey(r *models.SessionRecord) string {
	c := *r
	c.ToSplit = ""
	return fmt.Sprintf("%+v", c)
}

func TestPrepareBalancedThreeMonthDataset(t *testing.T) {
	cfg, records := writeBalancedRaw(t, t.TempDir())

	rawHeader, err := os.ReadFile(cfg.RawPath)
	require.NoError(t, err)
	assert.NotContains(t, strings.SplitN(string(rawHeader), "\n", 2)[0], features.StratKey)

	part, err := dataset.NewPreparer(dataset.NewSplitter(cfg, zap.NewNop()), zap.NewNop()).
		Prepare(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 49, part.XTrain.Len())
	assert.Equal(t, 21, part.XTest.Len())
	assert.Len(t, part.YTrain, 49)
	assert.Len(t, part.YTest, 21)

	train, err := dataset.ReadSessions(filepath.Join(cfg.ProcessedDir, dataset.TrainFile))
	require.NoError(t, err)
	test, err := dataset.ReadSessions(filepath.Join(cfg.ProcessedDir, dataset.TestFile))
	require.NoError(t, err)
	require.Len(t, train, 70)
	require.Len(t, test, 30)

	want := make([]string, len(records))
	for i, r := range records {
		want[i] = sessionKey(r)
	}
	got := make([]string, 0, len(train)+len(test))
	for _, r := range append(train, test...) {
		got = append(got, sessionKey(r))
	}
	assert.ElementsMatch(t, want, got)

	var positives float64
	for _, y := range append(part.YTrain, part.YTest...) {
		positives += y
	}
	assert.Equal(t, float64(35), positives)
}

func TestFrameFromSessionsCoversRequestFields(t *testing.T) {
	X, y, err := dataset.FrameFromSessions(datasettest.Sessions(10, 1), false)
	require.NoError(t, err)
	assert.Equal(t, features.RequestFields(), X.Columns())
	assert.Len(t, y, 10)
}
