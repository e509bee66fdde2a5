package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationMetrics(t *testing.T) {
	actual := []float64{1, 1, 1, 0, 0, 0, 0, 0}
	pred := []float64{1, 1, 0, 1, 0, 0, 0, 0}

	m, err := ClassificationMetrics(actual, pred)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, m.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, m.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, m.F1, 1e-12)
	assert.InDelta(t, 6.0/8, m.Accuracy, 1e-12)
}

func TestClassificationMetricsZeroDivision(t *testing.T) {
	m, err := ClassificationMetrics([]float64{1, 0, 0}, []float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.F1)
	assert.InDelta(t, 2.0/3, m.Accuracy, 1e-12)

	m, err = ClassificationMetrics([]float64{0, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.F1)
	assert.Equal(t, 1.0, m.Accuracy)
}

func TestClassificationMetricsLengthMismatch(t *testing.T) {
	_, err := ClassificationMetrics([]float64{1}, []float64{1, 0})
	assert.Error(t, err)
	_, err = ClassificationMetrics(nil, nil)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	y := make([]float64, 100)
	for i := 0; i < 30; i++ {
		y[i*3] = 1
	}

	folds, err := StratifiedKFold(y, 10)
	require.NoError(t, err)
	require.Len(t, folds, 10)

	seen := make(map[int]bool)
	for _, fold := range folds {
		assert.Len(t, fold, 10)
		positives := 0
		for _, i := range fold {
			assert.False(t, seen[i], "row %d in two folds", i)
			seen[i] = true
			if y[i] == 1 {
				positives++
			}
		}
		assert.Equal(t, 3, positives)
	}
	assert.Len(t, seen, 100)

	_, err = StratifiedKFold(y[:5], 10)
	assert.Error(t, err)
}

func TestCrossValPredict(t *testing.T) {
	X, y := separable(200, 12)

	res, err := CrossValPredict(context.Background(), func() (Classifier, error) {
		return NewDecisionTreeClassifier(42), nil
	}, X, y, 10)
	require.NoError(t, err)
	assert.Len(t, res.Predictions, 200)
	assert.Len(t, res.FoldF1, 10)
	for _, p := range res.Predictions {
		assert.Contains(t, []float64{0, 1}, p)
	}

	m, err := ClassificationMetrics(y, res.Predictions)
	require.NoError(t, err)
	assert.Greater(t, m.Accuracy, 0.75)

	mean, std, err := res.F1MeanStd()
	require.NoError(t, err)
	assert.Greater(t, mean, 0.5)
	assert.GreaterOrEqual(t, std, 0.0)
}

func TestCrossValPredictHonoursContext(t *testing.T) {
	X, y := separable(50, 13)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValPredict(ctx, func() (Classifier, error) {
		return NewLogisticRegression(), nil
	}, X, y, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
