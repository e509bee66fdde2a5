package training

import (
	"context"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// StratifiedKFold assigns rows to k test folds without shuffling. Each
// class's rows, in their original order, are cut into k contiguous chunks
// whose sizes differ by at most one, so every fold keeps the class ratio.
func StratifiedKFold(y []float64, k int) ([][]int, error) {
	if k < 2 {
		return nil, errors.Errorf("k must be >= 2, got %d", k)
	}
	if len(y) < k {
		return nil, errors.Errorf("cannot make %d folds from %d rows", k, len(y))
	}

	byClass := map[float64][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}

	folds := make([][]int, k)
	for _, class := range []float64{0, 1} {
		rows := byClass[class]
		size, extra := len(rows)/k, len(rows)%k
		start := 0
		for f := 0; f < k; f++ {
			end := start + size
			if f < extra {
				end++
			}
			folds[f] = append(folds[f], rows[start:end]...)
			start = end
		}
	}
	return folds, nil
}

// CVResult holds out-of-fold predictions and per-fold F1 scores.
type CVResult struct {
	Predictions []float64
	FoldF1      []float64
}

// F1MeanStd summarises the fold scores.
func (r *CVResult) F1MeanStd() (float64, float64, error) {
	mean, err := stats.Mean(r.FoldF1)
	if err != nil {
		return 0, 0, errors.Wrap(err, "fold f1 mean")
	}
	std, err := stats.StandardDeviationPopulation(r.FoldF1)
	if err != nil {
		return 0, 0, errors.Wrap(err, "fold f1 stddev")
	}
	return mean, std, nil
}

// CrossValPredict predicts every row with a model that never saw it during
// fitting. newModel must return a fresh, unfitted classifier on each call.
func CrossValPredict(ctx context.Context, newModel func() (Classifier, error), X mat.Matrix, y []float64, k int) (*CVResult, error) {
	n, _, err := validate(X, y)
	if err != nil {
		return nil, err
	}
	folds, err := StratifiedKFold(y, k)
	if err != nil {
		return nil, err
	}

	res := &CVResult{Predictions: make([]float64, n)}
	inTest := make([]bool, n)
	for f, testIdx := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(testIdx) == 0 {
			continue
		}
		for i := range inTest {
			inTest[i] = false
		}
		for _, i := range testIdx {
			inTest[i] = true
		}
		trainIdx := make([]int, 0, n-len(testIdx))
		for i := 0; i < n; i++ {
			if !inTest[i] {
				trainIdx = append(trainIdx, i)
			}
		}

		model, err := newModel()
		if err != nil {
			return nil, err
		}
		if err := model.Fit(SelectRows(X, trainIdx), pick(y, trainIdx)); err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		pred, err := model.Predict(SelectRows(X, testIdx))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		for j, i := range testIdx {
			res.Predictions[i] = pred[j]
		}

		m, err := ClassificationMetrics(pick(y, testIdx), pred)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		res.FoldF1 = append(res.FoldF1, m.F1)
	}
	return res, nil
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	row := make([]float64, c)
	for i, r := range idx {
		mat.Row(row, r, X)
		out.SetRow(i, row)
	}
	return out
}

func pick(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
