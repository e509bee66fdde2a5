package training

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// GradientBoostingClassifier fits shallow regression trees to the log-loss
// residuals and sets each leaf with a single Newton step.
type GradientBoostingClassifier struct {
	NEstimators  int         `json:"n_estimators"`
	LearningRate float64     `json:"learning_rate"`
	MaxDepth     int         `json:"max_depth"`
	Seed         int64       `json:"seed"`
	Init         float64     `json:"init"`
	NumFeatures  int         `json:"num_features"`
	Trees        []*TreeNode `json:"trees"`
}

// NewGradientBoostingClassifier creates 100 depth-3 stages at rate 0.1.
func NewGradientBoostingClassifier(seed int64) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{
		NEstimators:  100,
		LearningRate: 0.1,
		MaxDepth:     3,
		Seed:         seed,
	}
}

func (g *GradientBoostingClassifier) Kind() models.ModelKind { return models.ModelKindGradientBoosting }

func (g *GradientBoostingClassifier) Fit(X mat.Matrix, y []float64) error {
	n, c, err := validate(X, y)
	if err != nil {
		return err
	}
	if g.NEstimators < 1 || g.LearningRate <= 0 {
		return errors.New("n_estimators and learning_rate must be positive")
	}

	rows := rowsOf(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	g.Init = logit(meanOf(y, idx))
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = g.Init
	}

	residual := make([]float64, n)
	rng := rand.New(rand.NewSource(g.Seed))
	g.Trees = make([]*TreeNode, 0, g.NEstimators)

	for stage := 0; stage < g.NEstimators; stage++ {
		for i := range residual {
			residual[i] = y[i] - sigmoid(raw[i])
		}
		builder := newCartBuilder(cartParams{MaxDepth: g.MaxDepth}, rows, residual, rng)
		tree := builder.buildTree(idx, 0)

		// Newton step per leaf: sum(residual) / sum(p * (1 - p))
		num := make(map[*TreeNode]float64)
		den := make(map[*TreeNode]float64)
		leaves := make([]*TreeNode, n)
		for i, row := range rows {
			leaf := tree.leafFor(row)
			leaves[i] = leaf
			p := y[i] - residual[i]
			num[leaf] += residual[i]
			den[leaf] += p * (1 - p)
		}
		for leaf, s := range num {
			d := den[leaf]
			if math.Abs(d) < 1e-150 {
				leaf.Value = 0
			} else {
				leaf.Value = s / d
			}
		}
		for i, leaf := range leaves {
			raw[i] += g.LearningRate * leaf.Value
		}
		g.Trees = append(g.Trees, tree)
	}

	g.NumFeatures = c
	return nil
}

func (g *GradientBoostingClassifier) decision(row []float64) float64 {
	z := g.Init
	for _, tree := range g.Trees {
		z += g.LearningRate * tree.predict(row)
	}
	return z
}

func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if len(g.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, g.NumFeatures); err != nil {
		return nil, err
	}
	rows := rowsOf(X)
	p := make([]float64, len(rows))
	for i, row := range rows {
		p[i] = sigmoid(g.decision(row))
	}
	return probaMatrix(p), nil
}

func (g *GradientBoostingClassifier) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}
