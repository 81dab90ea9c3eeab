package forecast

import (
	regression "gitlab.com/maplesense1/wtr.telemetry_server/src/production/WTR.Forecast/regression"
)

// Algorithm is one selectable model with fixed hyperparameters.
type Algorithm struct {
	Key    string                  `json:"key"`
	Label  string                  `json:"label"`
	Params map[string]interface{}  `json:"params"`
	New    func() regression.Model `json:"-"`
}

// DefaultAlgorithm is used for unknown algorithm names.
const DefaultAlgorithm = "rf"

var algorithms = []Algorithm{
	{
		Key:   "rf",
		Label: "Random Forest",
		Params: map[string]interface{}{
			"trees": 20, "max_depth": 5, "min_samples_leaf": 1, "feature_subset": "onethird", "seed": 42,
		},
		New: func() regression.Model { return regression.NewRandomForest(regression.DefaultForestParams()) },
	},
	{
		Key:   "gbt",
		Label: "Gradient Boosted Trees",
		Params: map[string]interface{}{
			"iterations": 20, "max_depth": 5, "learning_rate": 0.1,
		},
		New: func() regression.Model { return regression.NewGradientBoosting(regression.DefaultBoostingParams()) },
	},
	{
		Key:   "lr",
		Label: "Linear Regression",
		Params: map[string]interface{}{
			"regularization": 0.1,
		},
		New: func() regression.Model { return regression.NewRidge(0.1) },
	},
}

// Algorithms returns the registry in display order.
func Algorithms() []Algorithm {
	return append([]Algorithm(nil), algorithms...)
}

// LookupAlgorithm returns the algorithm registered under key, or the random
// forest when key is unknown.
func LookupAlgorithm(key string) Algorithm {
	for _, a := range algorithms {
		if a.Key == key {
			return a
		}
	}
	return algorithms[0]
}
