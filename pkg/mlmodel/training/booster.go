package training

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// BoosterParams configure the second-order tree booster shared by the
// XGBClassifier and LGBMClassifier roster entries.
type BoosterParams struct {
	NumRounds       int     `json:"num_rounds"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`  // <= 0 is unlimited
	NumLeaves       int     `json:"num_leaves"` // > 0 grows leaf-wise
	LambdaL1        float64 `json:"lambda_l1"`
	LambdaL2        float64 `json:"lambda_l2"`
	MinChildSamples int     `json:"min_child_samples"`
	MinChildWeight  float64 `json:"min_child_weight"`
	MinSplitGain    float64 `json:"min_split_gain"`
	FeatureFraction float64 `json:"feature_fraction"`
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
}

// Booster fits trees to the gradient and hessian of the log loss. Leaf
// values already include the learning rate.
type Booster struct {
	Variant     models.ModelKind `json:"variant"`
	Params      BoosterParams    `json:"params"`
	Seed        int64            `json:"seed"`
	BaseScore   float64          `json:"base_score"`
	NumFeatures int              `json:"num_features"`
	Trees       []*TreeNode      `json:"trees"`
}

// NewXGBClassifier grows depth-wise trees: 100 rounds, depth 6, eta 0.3,
// L2 regularization 1.
func NewXGBClassifier(seed int64) *Booster {
	return &Booster{
		Variant: models.ModelKindXGB,
		Seed:    seed,
		Params: BoosterParams{
			NumRounds:       100,
			LearningRate:    0.3,
			MaxDepth:        6,
			LambdaL2:        1,
			MinChildSamples: 1,
			MinChildWeight:  1,
			FeatureFraction: 1,
			BaggingFraction: 1,
		},
	}
}

// DefaultLGBMParams are the leaf-wise booster's library defaults.
func DefaultLGBMParams() models.BoostingParams {
	return models.BoostingParams{
		BaggingFraction: 1,
		BaggingFreq:     0,
		FeatureFraction: 1,
		LambdaL1:        0,
		LambdaL2:        0,
		MinChildSamples: 20,
		NumLeaves:       31,
	}
}

// NewLGBMClassifier grows leaf-wise trees for 100 rounds at rate 0.1 with
// the given tunable parameters.
func NewLGBMClassifier(p models.BoostingParams, seed int64) *Booster {
	return &Booster{
		Variant: models.ModelKindLGBM,
		Seed:    seed,
		Params: BoosterParams{
			NumRounds:       100,
			LearningRate:    0.1,
			MaxDepth:        -1,
			NumLeaves:       p.NumLeaves,
			LambdaL1:        p.LambdaL1,
			LambdaL2:        p.LambdaL2,
			MinChildSamples: p.MinChildSamples,
			MinChildWeight:  1e-3,
			FeatureFraction: p.FeatureFraction,
			BaggingFraction: p.BaggingFraction,
			BaggingFreq:     p.BaggingFreq,
		},
	}
}

func (b *Booster) Kind() models.ModelKind { return b.Variant }

func (b *Booster) Fit(X mat.Matrix, y []float64) error {
	n, c, err := validate(X, y)
	if err != nil {
		return err
	}
	p := b.Params
	if p.NumRounds < 1 || p.LearningRate <= 0 {
		return errors.New("num_rounds and learning_rate must be positive")
	}
	if p.FeatureFraction <= 0 || p.FeatureFraction > 1 || p.BaggingFraction <= 0 || p.BaggingFraction > 1 {
		return errors.New("feature_fraction and bagging_fraction must be in (0, 1]")
	}

	rows := rowsOf(X)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	b.BaseScore = logit(meanOf(y, all))
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	rng := rand.New(rand.NewSource(b.Seed))
	bagging := p.BaggingFreq > 0 && p.BaggingFraction < 1
	bag := all
	b.Trees = make([]*TreeNode, 0, p.NumRounds)

	for round := 0; round < p.NumRounds; round++ {
		for i := range raw {
			prob := sigmoid(raw[i])
			grad[i] = prob - y[i]
			hess[i] = math.Max(prob*(1-prob), 1e-16)
		}
		if bagging && round%p.BaggingFreq == 0 {
			bag = sampleRows(rng, n, int(math.Max(1, math.Round(p.BaggingFraction*float64(n)))))
		}

		g := &newtonGrower{
			params:   p,
			rows:     rows,
			grad:     grad,
			hess:     hess,
			features: sampleFeatures(rng, c, p.FeatureFraction),
			scratch:  make([]int, n),
		}
		tree := g.grow(bag)
		for i, row := range rows {
			raw[i] += tree.predict(row)
		}
		b.Trees = append(b.Trees, tree)
	}

	b.NumFeatures = c
	return nil
}

func (b *Booster) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if len(b.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, b.NumFeatures); err != nil {
		return nil, err
	}
	rows := rowsOf(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		z := b.BaseScore
		for _, tree := range b.Trees {
			z += tree.predict(row)
		}
		out[i] = sigmoid(z)
	}
	return probaMatrix(out), nil
}

func (b *Booster) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := b.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}

// sampleRows draws k distinct row indices, returned in ascending order.
func sampleRows(rng *rand.Rand, n, k int) []int {
	if k >= n {
		k = n
	}
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

func sampleFeatures(rng *rand.Rand, c int, fraction float64) []int {
	k := int(math.Max(1, math.Round(fraction*float64(c))))
	if k >= c {
		all := make([]int, c)
		for i := range all {
			all[i] = i
		}
		return all
	}
	idx := rng.Perm(c)[:k]
	sort.Ints(idx)
	return idx
}

type newtonSplit struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

type newtonLeaf struct {
	node  *TreeNode
	idx   []int
	depth int
	split newtonSplit
}

// newtonGrower builds one tree from per-row gradients and hessians.
type newtonGrower struct {
	params   BoosterParams
	rows     [][]float64
	grad     []float64
	hess     []float64
	features []int
	scratch  []int
}

func thresholdL1(g, l1 float64) float64 {
	switch {
	case g > l1:
		return g - l1
	case g < -l1:
		return g + l1
	}
	return 0
}

func (g *newtonGrower) score(G, H float64) float64 {
	t := thresholdL1(G, g.params.LambdaL1)
	return t * t / (H + g.params.LambdaL2)
}

func (g *newtonGrower) sums(idx []int) (float64, float64) {
	var G, H float64
	for _, i := range idx {
		G += g.grad[i]
		H += g.hess[i]
	}
	return G, H
}

func (g *newtonGrower) leaf(idx []int) *TreeNode {
	G, H := g.sums(idx)
	w := -thresholdL1(G, g.params.LambdaL1) / (H + g.params.LambdaL2)
	return &TreeNode{Leaf: true, Value: g.params.LearningRate * w, Samples: len(idx)}
}

func (g *newtonGrower) canSplit(depth int) bool {
	return g.params.MaxDepth <= 0 || depth < g.params.MaxDepth
}

func (g *newtonGrower) findSplit(idx []int) newtonSplit {
	n := len(idx)
	minSamples := g.params.MinChildSamples
	if minSamples < 1 {
		minSamples = 1
	}
	best := newtonSplit{gain: math.Max(g.params.MinSplitGain, 1e-12)}
	if n < 2*minSamples {
		return best
	}

	G, H := g.sums(idx)
	parent := g.score(G, H)
	sorted := g.scratch[:n]

	for _, feature := range g.features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return g.rows[sorted[a]][feature] < g.rows[sorted[c]][feature]
		})

		var gl, hl float64
		for i := 0; i < n-1; i++ {
			gl += g.grad[sorted[i]]
			hl += g.hess[sorted[i]]

			x, next := g.rows[sorted[i]][feature], g.rows[sorted[i+1]][feature]
			if x == next {
				continue
			}
			if i+1 < minSamples || n-i-1 < minSamples {
				continue
			}
			gr, hr := G-gl, H-hl
			if hl < g.params.MinChildWeight || hr < g.params.MinChildWeight {
				continue
			}
			gain := g.score(gl, hl) + g.score(gr, hr) - parent
			if gain > best.gain {
				best = newtonSplit{feature: feature, threshold: midpoint(x, next), gain: gain, ok: true}
			}
		}
	}
	return best
}

// grow builds a depth-wise tree, or a leaf-wise one when NumLeaves is set.
func (g *newtonGrower) grow(idx []int) *TreeNode {
	if g.params.NumLeaves > 0 {
		return g.growLeafWise(idx)
	}
	return g.growDepthWise(idx, 0)
}

func (g *newtonGrower) growDepthWise(idx []int, depth int) *TreeNode {
	node := g.leaf(idx)
	if !g.canSplit(depth) {
		return node
	}
	s := g.findSplit(idx)
	if !s.ok {
		return node
	}
	left, right := splitIndices(g.rows, idx, s.feature, s.threshold)
	node.Leaf = false
	node.Feature = s.feature
	node.Threshold = s.threshold
	node.Left = g.growDepthWise(left, depth+1)
	node.Right = g.growDepthWise(right, depth+1)
	return node
}

// growLeafWise repeatedly splits the leaf with the largest gain until
// NumLeaves leaves exist or no leaf can be split.
func (g *newtonGrower) growLeafWise(idx []int) *TreeNode {
	root := g.leaf(idx)
	frontier := []*newtonLeaf{g.candidate(root, idx, 0)}

	for leaves := 1; leaves < g.params.NumLeaves; leaves++ {
		best := -1
		for i, c := range frontier {
			if c.split.ok && (best < 0 || c.split.gain > frontier[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		c := frontier[best]
		frontier = append(frontier[:best], frontier[best+1:]...)

		left, right := splitIndices(g.rows, c.idx, c.split.feature, c.split.threshold)
		c.node.Leaf = false
		c.node.Feature = c.split.feature
		c.node.Threshold = c.split.threshold
		c.node.Left = g.leaf(left)
		c.node.Right = g.leaf(right)

		frontier = append(frontier,
			g.candidate(c.node.Left, left, c.depth+1),
			g.candidate(c.node.Right, right, c.depth+1))
	}
	return root
}

func (g *newtonGrower) candidate(node *TreeNode, idx []int, depth int) *newtonLeaf {
	c := &newtonLeaf{node: node, idx: idx, depth: depth}
	if g.canSplit(depth) {
		c.split = g.findSplit(idx)
	}
	return c
}
