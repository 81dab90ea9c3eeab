// Package regression holds the models the forecasting engine can train.
// All of them map a fixed-width feature vector to one continuous target.
package regression

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrNonFiniteInput   = errors.New("non-finite value in training data")
	ErrFeatureMismatch  = errors.New("inconsistent feature count")
)

type Model interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// PredictAll applies m to every row of X.
func PredictAll(m Model, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// validate returns the feature count shared by every row.
func validate(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrFeatureMismatch, len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return 0, fmt.Errorf("%w: no features", ErrFeatureMismatch)
	}
	for i, row := range X {
		if len(row) != nf {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), nf)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d", ErrNonFiniteInput, i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, fmt.Errorf("%w: target %d", ErrNonFiniteInput, i)
		}
	}
	return nf, nil
}
