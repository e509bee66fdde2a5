package models

import (
	"fmt"
	"time"
)

// ModelKind names a classifier in the training roster. The name doubles as
// the artifact prefix and the tracked run name.
type ModelKind string

const (
	ModelKindLogisticRegression ModelKind = "LogisticRegression"
	ModelKindXGB                ModelKind = "XGBClassifier"
	ModelKindGradientBoosting   ModelKind = "GradientBoostingClassifier"
	ModelKindRandomForest       ModelKind = "RandomForestClassifier"
	ModelKindDecisionTree       ModelKind = "DecisionTreeClassifier"
	ModelKindLGBM               ModelKind = "LGBMClassifier"
)

// Roster returns the classifiers the model trainer evaluates, in order.
func Roster() []ModelKind {
	return []ModelKind{
		ModelKindLogisticRegression,
		ModelKindXGB,
		ModelKindGradientBoosting,
		ModelKindRandomForest,
		ModelKindDecisionTree,
		ModelKindLGBM,
	}
}

// ArtifactName is the store key a fitted roster model is persisted under.
func (k ModelKind) ArtifactName() string {
	return string(k) + "_model"
}

// Metrics holds positive-class classification metrics.
type Metrics struct {
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// Prefixed flattens the metrics into tracking keys such as train_F1.
func (m Metrics) Prefixed(prefix string) map[string]float64 {
	return map[string]float64{
		prefix + "Recall":    m.Recall,
		prefix + "Precision": m.Precision,
		prefix + "F1":        m.F1,
		prefix + "Accuracy":  m.Accuracy,
	}
}

// BoostingParams are the tuned hyperparameters of the final leaf-wise
// gradient-boosting model. Field order matches the persisted YAML.
type BoostingParams struct {
	BaggingFraction float64 `yaml:"bagging_fraction" json:"bagging_fraction"`
	BaggingFreq     int     `yaml:"bagging_freq" json:"bagging_freq"`
	FeatureFraction float64 `yaml:"feature_fraction" json:"feature_fraction"`
	LambdaL1        float64 `yaml:"lambda_l1" json:"lambda_l1"`
	LambdaL2        float64 `yaml:"lambda_l2" json:"lambda_l2"`
	MinChildSamples int     `yaml:"min_child_samples" json:"min_child_samples"`
	NumLeaves       int     `yaml:"num_leaves" json:"num_leaves"`
}

// Validate checks that every parameter is usable by the booster.
func (p BoostingParams) Validate() error {
	switch {
	case p.NumLeaves < 2:
		return fmt.Errorf("num_leaves must be >= 2, got %d", p.NumLeaves)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return fmt.Errorf("feature_fraction must be in (0, 1], got %g", p.FeatureFraction)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return fmt.Errorf("bagging_fraction must be in (0, 1], got %g", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return fmt.Errorf("bagging_freq must be >= 0, got %d", p.BaggingFreq)
	case p.MinChildSamples < 1:
		return fmt.Errorf("min_child_samples must be >= 1, got %d", p.MinChildSamples)
	case p.LambdaL1 < 0 || p.LambdaL2 < 0:
		return fmt.Errorf("lambda_l1 and lambda_l2 must be >= 0")
	}
	return nil
}

// AsStrings renders the parameters for a tracking sink.
func (p BoostingParams) AsStrings() map[string]string {
	return map[string]string{
		"bagging_fraction":  fmt.Sprint(p.BaggingFraction),
		"bagging_freq":      fmt.Sprint(p.BaggingFreq),
		"feature_fraction":  fmt.Sprint(p.FeatureFraction),
		"lambda_l1":         fmt.Sprint(p.LambdaL1),
		"lambda_l2":         fmt.Sprint(p.LambdaL2),
		"min_child_samples": fmt.Sprint(p.MinChildSamples),
		"num_leaves":        fmt.Sprint(p.NumLeaves),
	}
}

// ModelReport summarises one roster model after cross-validation and the
// held-out evaluation.
type ModelReport struct {
	Kind      ModelKind `json:"kind"`
	RunID     string    `json:"run_id"`
	Train     Metrics   `json:"train"`
	Test      Metrics   `json:"test"`
	CVF1Mean  float64   `json:"cv_f1_mean"`
	CVF1Std   float64   `json:"cv_f1_std"`
	TrainedAt time.Time `json:"trained_at"`
}
