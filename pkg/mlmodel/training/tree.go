package training

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is a node of a binary tree. Internal nodes send rows with
// x[Feature] <= Threshold left. Value is the leaf output: the positive-class
// fraction for classification trees, the fitted leaf value for boosted trees.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Value     float64   `json:"value"`
	Samples   int       `json:"samples"`
}

// leafFor walks a row down to its leaf.
func (n *TreeNode) leafFor(row []float64) *TreeNode {
	for !n.Leaf {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

func (n *TreeNode) predict(row []float64) float64 {
	return n.leafFor(row).Value
}

// cartParams bound tree growth. MaxDepth <= 0 means unlimited and
// MaxFeatures <= 0 means every feature is tried at each split.
type cartParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
}

// cartBuilder grows a tree minimising the squared error of target. For 0/1
// targets this is the same split ordering as Gini impurity, since
// n*Gini = 2*SSE for binary labels.
type cartBuilder struct {
	params    cartParams
	rows      [][]float64
	target    []float64
	nFeatures int
	rng       *rand.Rand
	scratch   []int
}

func newCartBuilder(params cartParams, rows [][]float64, target []float64, rng *rand.Rand) *cartBuilder {
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	nFeatures := 0
	if len(rows) > 0 {
		nFeatures = len(rows[0])
	}
	return &cartBuilder{
		params:    params,
		rows:      rows,
		target:    target,
		nFeatures: nFeatures,
		rng:       rng,
		scratch:   make([]int, len(rows)),
	}
}

// buildTree recursively grows the tree over the row indices idx.
func (b *cartBuilder) buildTree(idx []int, depth int) *TreeNode {
	node := &TreeNode{Value: meanOf(b.target, idx), Samples: len(idx)}

	if (b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) ||
		len(idx) < b.params.MinSamplesSplit ||
		len(idx) < 2*b.params.MinSamplesLeaf ||
		isHomogeneous(b.target, idx) {
		node.Leaf = true
		return node
	}

	feature, threshold, ok := b.findBestSplit(idx)
	if !ok {
		node.Leaf = true
		return node
	}

	left, right := splitIndices(b.rows, idx, feature, threshold)
	node.Feature = feature
	node.Threshold = threshold
	node.Left = b.buildTree(left, depth+1)
	node.Right = b.buildTree(right, depth+1)
	return node
}

// featureOrder returns the features to inspect at a node.
func (b *cartBuilder) featureOrder() []int {
	if b.params.MaxFeatures <= 0 || b.params.MaxFeatures >= b.nFeatures || b.rng == nil {
		order := make([]int, b.nFeatures)
		for i := range order {
			order[i] = i
		}
		return order
	}
	return b.rng.Perm(b.nFeatures)
}

// findBestSplit sweeps every candidate feature in sorted order. With
// MaxFeatures set, the search stops after that many features once a valid
// split exists, and keeps drawing features otherwise.
func (b *cartBuilder) findBestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var totalS, totalSS float64
	for _, i := range idx {
		v := b.target[i]
		totalS += v
		totalSS += v * v
	}

	bestSSE := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0
	minLeaf := b.params.MinSamplesLeaf
	sorted := b.scratch[:n]

	for inspected, feature := range b.featureOrder() {
		if b.params.MaxFeatures > 0 && inspected >= b.params.MaxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][feature] < b.rows[sorted[c]][feature]
		})

		var leftS, leftSS float64
		for i := 0; i < n-1; i++ {
			v := b.target[sorted[i]]
			leftS += v
			leftSS += v * v

			x, next := b.rows[sorted[i]][feature], b.rows[sorted[i+1]][feature]
			if x == next {
				continue
			}
			nl, nr := float64(i+1), float64(n-i-1)
			if i+1 < minLeaf || n-i-1 < minLeaf {
				continue
			}
			rightS, rightSS := totalS-leftS, totalSS-leftSS
			sse := (leftSS - leftS*leftS/nl) + (rightSS - rightS*rightS/nr)
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = feature
				bestThreshold = midpoint(x, next)
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}

func splitIndices(rows [][]float64, idx []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

func isHomogeneous(y []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			return false
		}
	}
	return true
}
