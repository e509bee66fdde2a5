package training

import (
	"math"
	"math/rand"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// RandomForestClassifier averages bootstrapped CART trees that each consider
// sqrt(features) candidates per split.
type RandomForestClassifier struct {
	NEstimators int         `json:"n_estimators"`
	MaxDepth    int         `json:"max_depth"`
	Seed        int64       `json:"seed"`
	NumFeatures int         `json:"num_features"`
	Trees       []*TreeNode `json:"trees"`
}

// NewRandomForestClassifier creates a 100-tree forest.
func NewRandomForestClassifier(seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{NEstimators: 100, Seed: seed}
}

func (f *RandomForestClassifier) Kind() models.ModelKind { return models.ModelKindRandomForest }

// Fit grows the trees concurrently. Bootstrap samples and per-tree seeds are
// drawn up front so the result does not depend on scheduling.
func (f *RandomForestClassifier) Fit(X mat.Matrix, y []float64) error {
	n, c, err := validate(X, y)
	if err != nil {
		return err
	}
	if f.NEstimators < 1 {
		return errors.Errorf("n_estimators must be >= 1, got %d", f.NEstimators)
	}

	rows := rowsOf(X)
	maxFeatures := int(math.Max(1, math.Floor(math.Sqrt(float64(c)))))

	rng := rand.New(rand.NewSource(f.Seed))
	samples := make([][]int, f.NEstimators)
	seeds := make([]int64, f.NEstimators)
	for t := range samples {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		samples[t] = sample
		seeds[t] = rng.Int63()
	}

	trees := make([]*TreeNode, f.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		t := t
		g.Go(func() error {
			builder := newCartBuilder(cartParams{
				MaxDepth:    f.MaxDepth,
				MaxFeatures: maxFeatures,
			}, rows, y, rand.New(rand.NewSource(seeds[t])))
			trees[t] = builder.buildTree(samples[t], 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Trees = trees
	f.NumFeatures = c
	return nil
}

// PredictProba averages the trees' leaf fractions.
func (f *RandomForestClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, f.NumFeatures); err != nil {
		return nil, err
	}
	rows := rowsOf(X)
	p := make([]float64, len(rows))
	for i, row := range rows {
		for _, tree := range f.Trees {
			p[i] += tree.predict(row)
		}
		p[i] /= float64(len(f.Trees))
	}
	return probaMatrix(p), nil
}

func (f *RandomForestClassifier) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}
