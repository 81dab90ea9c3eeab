package regression

import (
	"gonum.org/v1/gonum/stat"
)

// BoostingParams configures gradient boosting with squared loss.
type BoostingParams struct {
	Iterations   int
	LearningRate float64
	Tree         TreeParams
}

func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		Iterations:   20,
		LearningRate: 0.1,
		Tree:         TreeParams{MaxDepth: 5, MinSamplesLeaf: 1},
	}
}

// GradientBoosting fits each tree to the residuals of the ensemble so far,
// starting from the mean target.
type GradientBoosting struct {
	params BoostingParams
	init   float64
	trees  []*Tree
}

func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{params: params}
}

func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if _, err := validate(X, y); err != nil {
		return err
	}

	g.init = stat.Mean(y, nil)
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.init
	}

	residual := make([]float64, len(y))
	g.trees = make([]*Tree, 0, g.params.Iterations)
	for it := 0; it < g.params.Iterations; it++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		tree := NewTree(g.params.Tree, nil)
		if err := tree.Fit(X, residual); err != nil {
			return err
		}
		for i, x := range X {
			pred[i] += g.params.LearningRate * tree.Predict(x)
		}
		g.trees = append(g.trees, tree)
	}
	return nil
}

func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.init
	for _, t := range g.trees {
		out += g.params.LearningRate * t.Predict(x)
	}
	return out
}
