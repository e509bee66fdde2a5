package preprocess

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/config"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
)

// Pipeline chains the three encoders in a fixed order. It is persisted as
// the "pipeline" artifact and is read-only once fitted.
type Pipeline struct {
	Rare     *RareLabelEncoder `json:"rare_enc"`
	OneHot   *OneHotEncoder    `json:"onehot_enc"`
	MinMax   *MinMaxScaler     `json:"minmax_scaler"`
	Features []string          `json:"features,omitempty"`
}

// Build creates an unfitted pipeline from the encoding config.
func Build(cfg config.EncodingConfig) *Pipeline {
	tol := cfg.RareEncTol
	if tol == 0 {
		tol = config.DefaultRareTol
	}
	return &Pipeline{
		Rare: &RareLabelEncoder{
			Variables:   append([]string(nil), cfg.RareEnc...),
			Tol:         tol,
			NCategories: cfg.RareEncNCategories,
		},
		OneHot: &OneHotEncoder{Variables: append([]string(nil), cfg.OneHotEnc...)},
		MinMax: &MinMaxScaler{Variables: append([]string(nil), cfg.MinMaxScaler...)},
	}
}

func (p *Pipeline) steps() []Transformer {
	return []Transformer{p.Rare, p.OneHot, p.MinMax}
}

// Fitted reports whether FitTransform has completed.
func (p *Pipeline) Fitted() bool {
	return len(p.Features) > 0
}

// FitTransform fits every stage on the output of the previous one and
// returns the transformed training frame.
func (p *Pipeline) FitTransform(X *dataset.Frame) (*dataset.Frame, error) {
	current := X
	for _, step := range p.steps() {
		if err := step.Fit(current); err != nil {
			return nil, errors.Wrapf(err, "fit %s", step.Name())
		}
		next, err := step.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "transform %s", step.Name())
		}
		current = next
	}
	if err := requireNumeric(current); err != nil {
		return nil, err
	}
	p.Features = current.Columns()
	return current, nil
}

// Transform applies the fitted stages. Neither the pipeline nor X is
// modified.
func (p *Pipeline) Transform(X *dataset.Frame) (*dataset.Frame, error) {
	if !p.Fitted() {
		return nil, errors.Wrap(ErrNotFitted, "pipeline")
	}
	current := X
	for _, step := range p.steps() {
		next, err := step.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "transform %s", step.Name())
		}
		current = next
	}
	return current, nil
}

// ToMatrix lays the frame out in the fitted feature order.
func (p *Pipeline) ToMatrix(X *dataset.Frame) (*mat.Dense, error) {
	if !p.Fitted() {
		return nil, errors.Wrap(ErrNotFitted, "pipeline")
	}
	if len(X.Columns()) != len(p.Features) {
		return nil, errors.Errorf("shape mismatch: frame has %d columns, pipeline expects %d", len(X.Columns()), len(p.Features))
	}
	if X.Len() == 0 {
		return nil, errors.New("cannot build a matrix from an empty frame")
	}
	m := mat.NewDense(X.Len(), len(p.Features), nil)
	for j, name := range p.Features {
		col, ok := X.Column(name)
		if !ok {
			return nil, errors.Errorf("shape mismatch: column %q missing", name)
		}
		if col.Kind != dataset.Numeric {
			return nil, errors.Errorf("column %q is not numeric", name)
		}
		m.SetCol(j, col.Num)
	}
	return m, nil
}

// TransformMatrix is Transform followed by ToMatrix.
func (p *Pipeline) TransformMatrix(X *dataset.Frame) (*mat.Dense, error) {
	out, err := p.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.ToMatrix(out)
}

func requireNumeric(X *dataset.Frame) error {
	for _, name := range X.Columns() {
		col, _ := X.Column(name)
		if col.Kind != dataset.Numeric {
			return errors.Errorf("column %q is still categorical after preprocessing", name)
		}
	}
	return nil
}
