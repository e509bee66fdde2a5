// Package training implements the binary classifiers evaluated by the model
// trainer, plus cross-validation and metrics.
package training

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// Classifier is a binary classifier over a dense feature matrix. Labels are
// 0 or 1. PredictProba returns an n x 2 matrix of [P(0), P(1)] rows.
type Classifier interface {
	Kind() models.ModelKind
	Fit(X mat.Matrix, y []float64) error
	PredictProba(X mat.Matrix) (*mat.Dense, error)
	Predict(X mat.Matrix) ([]float64, error)
}

// ErrNotFitted is returned when predicting with an unfitted classifier.
var ErrNotFitted = errors.New("classifier not fitted")

// New returns a classifier of the given kind with its default settings.
func New(kind models.ModelKind, seed int64) (Classifier, error) {
	switch kind {
	case models.ModelKindLogisticRegression:
		return NewLogisticRegression(), nil
	case models.ModelKindXGB:
		return NewXGBClassifier(seed), nil
	case models.ModelKindGradientBoosting:
		return NewGradientBoostingClassifier(seed), nil
	case models.ModelKindRandomForest:
		return NewRandomForestClassifier(seed), nil
	case models.ModelKindDecisionTree:
		return NewDecisionTreeClassifier(seed), nil
	case models.ModelKindLGBM:
		return NewLGBMClassifier(DefaultLGBMParams(), seed), nil
	}
	return nil, errors.Errorf("no classifier available for kind: %s", kind)
}

// Envelope tags a serialized classifier with its kind so it can be loaded
// back without knowing the concrete type.
type Envelope struct {
	Kind  models.ModelKind `json:"kind"`
	Model json.RawMessage  `json:"model"`
}

// Wrap serializes c into an envelope.
func Wrap(c Classifier) (*Envelope, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", c.Kind())
	}
	return &Envelope{Kind: c.Kind(), Model: raw}, nil
}

// Unwrap restores the classifier held by the envelope.
func (e *Envelope) Unwrap() (Classifier, error) {
	c, err := New(e.Kind, 0)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(e.Model, c); err != nil {
		return nil, errors.Wrapf(err, "decode %s", e.Kind)
	}
	return c, nil
}

func validate(X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.New("no training data provided")
	}
	if r != len(y) {
		return 0, 0, errors.Errorf("feature rows (%d) and labels (%d) differ", r, len(y))
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return 0, 0, errors.Errorf("label %d is %g, want 0 or 1", i, v)
		}
	}
	return r, c, nil
}

func checkWidth(X mat.Matrix, want int) error {
	if want == 0 {
		return ErrNotFitted
	}
	if _, c := X.Dims(); c != want {
		return errors.Errorf("feature count mismatch: got %d, fitted on %d", c, want)
	}
	return nil
}

// rowsOf copies X into row slices for tree traversal.
func rowsOf(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, X)
	}
	return rows
}

// probaMatrix turns positive-class probabilities into [P(0), P(1)] rows.
func probaMatrix(p1 []float64) *mat.Dense {
	out := mat.NewDense(len(p1), 2, nil)
	for i, p := range p1 {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out
}

// predictFromProba picks the more likely class; ties go to 0.
func predictFromProba(proba *mat.Dense) []float64 {
	n, _ := proba.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > proba.At(i, 0) {
			out[i] = 1
		}
	}
	return out
}

// PositiveProba extracts the P(1) column.
func PositiveProba(proba *mat.Dense) []float64 {
	n, _ := proba.Dims()
	out := make([]float64, n)
	mat.Col(out, 1, proba)
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func logit(p float64) float64 {
	const eps = 1e-15
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

func meanOf(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}
