package regression

import (
	"math/rand"
	"sort"
)

// TreeParams configures a CART regression tree. MaxFeatures limits the
// features considered at each split; zero means all of them.
type TreeParams struct {
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int
}

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

// Tree is a regression tree grown by variance reduction.
type Tree struct {
	params TreeParams
	rng    *rand.Rand
	root   *node
}

// NewTree creates a tree. rng is only used when MaxFeatures subsamples.
func NewTree(params TreeParams, rng *rand.Rand) *Tree {
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	return &Tree{params: params, rng: rng}
}

func (t *Tree) Fit(X [][]float64, y []float64) error {
	nf, err := validate(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(X, y, idx, nf, 0)
	return nil
}

func (t *Tree) Predict(x []float64) float64 {
	n := t.root
	if n == nil {
		return 0
	}
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func (t *Tree) grow(X [][]float64, y []float64, idx []int, nf, depth int) *node {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	leaf := &node{leaf: true, value: sum / float64(len(idx))}

	minLeaf := t.params.MinSamplesLeaf
	if depth >= t.params.MaxDepth || len(idx) < 2*minLeaf {
		return leaf
	}

	best := struct {
		score     float64
		feature   int
		threshold float64
		pos       int
		order     []int
	}{score: sum * sum / float64(len(idx)), pos: -1}
	baseline := best.score

	for _, f := range t.candidateFeatures(nf) {
		order := append([]int(nil), idx...)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var left float64
		for k := 1; k < len(order); k++ {
			left += y[order[k-1]]
			if k < minLeaf || len(order)-k < minLeaf {
				continue
			}
			lo, hi := X[order[k-1]][f], X[order[k]][f]
			if lo == hi {
				continue
			}
			right := sum - left
			// maximising this is the same as minimising the children's SSE
			score := left*left/float64(k) + right*right/float64(len(order)-k)
			if score > best.score {
				best.score = score
				best.feature = f
				best.threshold = midpoint(lo, hi)
				best.pos = k
				best.order = order
			}
		}
	}

	if best.pos < 0 || best.score-baseline <= 1e-12 {
		return leaf
	}
	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		left:      t.grow(X, y, best.order[:best.pos], nf, depth+1),
		right:     t.grow(X, y, best.order[best.pos:], nf, depth+1),
	}
}

func (t *Tree) candidateFeatures(nf int) []int {
	if t.params.MaxFeatures <= 0 || t.params.MaxFeatures >= nf || t.rng == nil {
		all := make([]int, nf)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return t.rng.Perm(nf)[:t.params.MaxFeatures]
}

// midpoint splits lo < hi so that lo goes left and hi goes right, including
// adjacent floats and magnitudes where lo+hi overflows.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
