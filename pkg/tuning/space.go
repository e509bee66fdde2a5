// Package tuning searches the final booster's hyperparameters with a
// tree-structured Parzen estimator.
package tuning

import (
	"math"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// Param is one dimension of a search space. Int params take whole values
// in [Low, High].
type Param struct {
	Name string
	Low  float64
	High float64
	Int  bool
}

func (p Param) clamp(v float64) float64 {
	if p.Int {
		v = math.Round(v)
	}
	return math.Max(p.Low, math.Min(p.High, v))
}

// BoosterSpace is the search space of the leaf-wise booster.
func BoosterSpace() []Param {
	return []Param{
		{Name: "lambda_l1", Low: 1e-8, High: 10.0},
		{Name: "lambda_l2", Low: 1e-8, High: 10.0},
		{Name: "num_leaves", Low: 2, High: 256, Int: true},
		{Name: "feature_fraction", Low: 0.4, High: 1.0},
		{Name: "bagging_fraction", Low: 0.4, High: 1.0},
		{Name: "bagging_freq", Low: 1, High: 7, Int: true},
		{Name: "min_child_samples", Low: 5, High: 100, Int: true},
	}
}

// ParamsFromValues maps sampled values onto booster params.
func ParamsFromValues(v map[string]float64) models.BoostingParams {
	return models.BoostingParams{
		BaggingFraction: v["bagging_fraction"],
		BaggingFreq:     int(math.Round(v["bagging_freq"])),
		FeatureFraction: v["feature_fraction"],
		LambdaL1:        v["lambda_l1"],
		LambdaL2:        v["lambda_l2"],
		MinChildSamples: int(math.Round(v["min_child_samples"])),
		NumLeaves:       int(math.Round(v["num_leaves"])),
	}
}
