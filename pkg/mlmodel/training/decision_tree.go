package training

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// DecisionTreeClassifier is a CART classifier grown until its leaves are
// pure unless MaxDepth says otherwise. Leaves predict the fraction of
// positive training rows they hold.
type DecisionTreeClassifier struct {
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	Seed            int64     `json:"seed"`
	NumFeatures     int       `json:"num_features"`
	Root            *TreeNode `json:"root"`
}

// NewDecisionTreeClassifier creates a tree with unlimited depth.
func NewDecisionTreeClassifier(seed int64) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            seed,
	}
}

func (t *DecisionTreeClassifier) Kind() models.ModelKind { return models.ModelKindDecisionTree }

// Fit builds the tree.
func (t *DecisionTreeClassifier) Fit(X mat.Matrix, y []float64) error {
	n, c, err := validate(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	builder := newCartBuilder(cartParams{
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		MinSamplesLeaf:  t.MinSamplesLeaf,
	}, rowsOf(X), y, rand.New(rand.NewSource(t.Seed)))

	t.Root = builder.buildTree(idx, 0)
	t.NumFeatures = c
	return nil
}

// PredictProba returns leaf class fractions.
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if t.Root == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, t.NumFeatures); err != nil {
		return nil, err
	}
	rows := rowsOf(X)
	p := make([]float64, len(rows))
	for i, row := range rows {
		p[i] = t.Root.predict(row)
	}
	return probaMatrix(p), nil
}

// Predict returns hard 0/1 labels.
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}

// Depth returns the depth of the fitted tree.
func (t *DecisionTreeClassifier) Depth() int {
	return depthOf(t.Root)
}

func depthOf(n *TreeNode) int {
	if n == nil || n.Leaf {
		return 0
	}
	l, r := depthOf(n.Left), depthOf(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}
