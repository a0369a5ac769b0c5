package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a regression tree stored in a flat slice. Leaves
// have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
}

// IsLeaf reports whether the node carries a prediction.
func (n Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a depth-limited regression tree fitted to gradient statistics.
type Tree struct {
	Nodes []Node
}

// Predict walks row i of X to a leaf. Values equal to the threshold go
// left.
func (t *Tree) Predict(X mat.Matrix, i int) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value
		}
		if X.At(i, node.Feature) <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// NumLeaves counts the leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

// treeParams are the growth constraints shared by every tree of a model.
type treeParams struct {
	maxDepth       int
	minChildWeight float64
	gamma          float64
	lambda         float64
}

// treeBuilder grows one tree on precomputed gradients and hessians.
type treeBuilder struct {
	X        mat.Matrix
	grad     []float64
	hess     []float64
	features []int
	params   treeParams
	tree     *Tree
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) build(rows []int) *Tree {
	b.tree = &Tree{}
	b.grow(rows, 0)
	return b.tree
}

func (b *treeBuilder) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	return g, h
}

// leafValue は L2 正則化付きの最適値 -G/(H+λ)
func (b *treeBuilder) leafValue(g, h float64) float64 {
	return -g / (h + b.params.lambda)
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	idx := len(b.tree.Nodes)
	g, h := b.sums(rows)
	b.tree.Nodes = append(b.tree.Nodes, Node{Left: -1, Right: -1, Value: b.leafValue(g, h)})

	if depth >= b.params.maxDepth || h < 2*b.params.minChildWeight {
		return idx
	}
	best, ok := b.bestSplit(rows, g, h)
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.X.At(r, best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := b.grow(left, depth+1)
	rt := b.grow(right, depth+1)
	b.tree.Nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      l,
		Right:     rt,
		Value:     b.tree.Nodes[idx].Value,
		Gain:      best.gain,
	}
	return idx
}

// score は G²/(H+λ)
func (b *treeBuilder) score(g, h float64) float64 {
	return g * g / (h + b.params.lambda)
}

// bestSplit scans every sampled feature in ascending order and keeps the
// first split with the largest gain. Gain is reduced by gamma and must stay
// positive.
func (b *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	best := split{gain: 0}
	found := false
	parent := b.score(g, h)

	order := make([]int, len(rows))
	for _, f := range b.features {
		copy(order, rows)
		sort.SliceStable(order, func(i, j int) bool {
			return b.X.At(order[i], f) < b.X.At(order[j], f)
		})

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			gl += b.grad[order[i]]
			hl += b.hess[order[i]]
			v, next := b.X.At(order[i], f), b.X.At(order[i+1], f)
			if v == next {
				continue
			}
			gr, hr := g-gl, h-hl
			if hl < b.params.minChildWeight || hr < b.params.minChildWeight {
				continue
			}
			gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.params.gamma
			if gain > best.gain && !math.IsNaN(gain) {
				best = split{feature: f, threshold: (v + next) / 2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}
