package training

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// LogisticRegression is L2-regularised logistic regression fitted with
// L-BFGS. C is the inverse regularisation strength; the intercept is not
// penalised.
type LogisticRegression struct {
	C         float64   `json:"c"`
	MaxIter   int       `json:"max_iter"`
	Tol       float64   `json:"tol"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// NewLogisticRegression uses C=1 and up to 1000 iterations.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 1000, Tol: 1e-4}
}

func (l *LogisticRegression) Kind() models.ModelKind { return models.ModelKindLogisticRegression }

func (l *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	n, c, err := validate(X, y)
	if err != nil {
		return err
	}
	if l.C <= 0 {
		return errors.Errorf("C must be positive, got %g", l.C)
	}

	Xd := mat.DenseCopyOf(X)
	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	z := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	gw := mat.NewVecDense(c, nil)
	alpha := 1 / l.C

	// params = [w_0 .. w_{c-1}, b]
	margins := func(params []float64) {
		w := mat.NewVecDense(c, params[:c])
		z.MulVec(Xd, w)
		for i := 0; i < n; i++ {
			z.SetVec(i, z.AtVec(i)+params[c])
		}
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			margins(params)
			loss := 0.0
			for i := 0; i < n; i++ {
				m := z.AtVec(i)
				// log(1 + exp(m)) - y*m, computed stably
				loss += softplus(m) - yv.AtVec(i)*m
			}
			w := params[:c]
			return loss + 0.5*alpha*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			margins(params)
			for i := 0; i < n; i++ {
				resid.SetVec(i, sigmoid(z.AtVec(i))-yv.AtVec(i))
			}
			gw.MulVec(Xd.T(), resid)
			for j := 0; j < c; j++ {
				grad[j] = gw.AtVec(j) + alpha*params[j]
			}
			grad[c] = mat.Sum(resid)
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: l.Tol,
		MajorIterations:   l.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, c+1), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != c+1 {
		return errors.Wrap(err, "logistic regression did not converge")
	}
	// hitting the iteration cap still leaves a usable solution
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("logistic regression diverged")
		}
	}

	l.Weights = append([]float64(nil), result.X[:c]...)
	l.Intercept = result.X[c]
	return nil
}

func softplus(m float64) float64 {
	if m > 0 {
		return m + math.Log1p(math.Exp(-m))
	}
	return math.Log1p(math.Exp(m))
}

func (l *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := checkWidth(X, len(l.Weights)); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	z := mat.NewVecDense(r, nil)
	z.MulVec(X, mat.NewVecDense(len(l.Weights), l.Weights))
	p := make([]float64, r)
	for i := range p {
		p[i] = sigmoid(z.AtVec(i) + l.Intercept)
	}
	return probaMatrix(p), nil
}

func (l *LogisticRegression) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := l.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba), nil
}
