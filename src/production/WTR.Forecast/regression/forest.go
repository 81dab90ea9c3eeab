package regression

import (
	"math/rand"
)

// ForestParams configures bagged trees. Tree.MaxFeatures of zero selects one
// third of the features per split (at least one).
type ForestParams struct {
	Trees int
	Tree  TreeParams
	Seed  int64
}

func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees: 20,
		Tree:  TreeParams{MaxDepth: 5, MinSamplesLeaf: 1},
		Seed:  42,
	}
}

// RandomForest averages trees fitted on bootstrap samples.
type RandomForest struct {
	params ForestParams
	trees  []*Tree
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{params: params}
}

func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	nf, err := validate(X, y)
	if err != nil {
		return err
	}

	treeParams := f.params.Tree
	if treeParams.MaxFeatures <= 0 {
		treeParams.MaxFeatures = nf / 3
		if treeParams.MaxFeatures < 1 {
			treeParams.MaxFeatures = 1
		}
	}

	rng := rand.New(rand.NewSource(f.params.Seed))
	n := len(X)
	f.trees = make([]*Tree, 0, f.params.Trees)
	for t := 0; t < f.params.Trees; t++ {
		bx := make([][]float64, n)
		by := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			bx[i], by[i] = X[j], y[j]
		}
		tree := NewTree(treeParams, rng)
		if err := tree.Fit(bx, by); err != nil {
			return err
		}
		f.trees = append(f.trees, tree)
	}
	return nil
}

func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.trees))
}
