package regression

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is least squares with an L2 penalty on the weights. The intercept is
// not penalised: features and target are centred before solving.
type Ridge struct {
	Lambda    float64
	weights   []float64
	intercept float64
}

func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

func (r *Ridge) Fit(X [][]float64, y []float64) error {
	nf, err := validate(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, nf)
	col := make([]float64, n)
	for j := 0; j < nf; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	ym := stat.Mean(y, nil)

	xc := mat.NewDense(n, nf, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-means[j])
		}
		yc.SetVec(i, y[i]-ym)
	}

	var a mat.Dense
	a.Mul(xc.T(), xc)
	for j := 0; j < nf; j++ {
		a.Set(j, j, a.At(j, j)+r.Lambda)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&a, &b); err != nil {
		return fmt.Errorf("ridge solve: %w", err)
	}

	r.weights = make([]float64, nf)
	for j := range r.weights {
		r.weights[j] = w.AtVec(j)
	}
	r.intercept = ym - floats.Dot(r.weights, means)
	return nil
}

func (r *Ridge) Predict(x []float64) float64 {
	if r.weights == nil {
		return 0
	}
	return r.intercept + floats.Dot(r.weights, x)
}

// Coefficients returns the fitted weights and intercept.
func (r *Ridge) Coefficients() ([]float64, float64) {
	return append([]float64(nil), r.weights...), r.intercept
}
