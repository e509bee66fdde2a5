// Package preprocess turns a raw feature frame into a numeric matrix:
// rare-category grouping, then one-hot encoding, then min-max scaling.
package preprocess

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
)

var (
	// ErrUnseenCategory is returned when transform meets a category the
	// one-hot encoder never saw during fit.
	ErrUnseenCategory = errors.New("unseen category")
	// ErrNotFitted is returned by Transform before Fit.
	ErrNotFitted = errors.New("transformer not fitted")
)

// RareLabel replaces infrequent categories.
const RareLabel = "Rare"

// StageError wraps a transform failure with the stage and variable at fault.
type StageError struct {
	Stage    string
	Variable string
	Err      error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Variable + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Transformer is one fitted stage of the pipeline.
type Transformer interface {
	Name() string
	Fit(X *dataset.Frame) error
	Transform(X *dataset.Frame) (*dataset.Frame, error)
}

func categorical(stage string, X *dataset.Frame, name string) (*dataset.Column, error) {
	col, ok := X.Column(name)
	if !ok {
		return nil, &StageError{Stage: stage, Variable: name, Err: errors.New("column not found")}
	}
	if col.Kind != dataset.Categorical {
		return nil, &StageError{Stage: stage, Variable: name, Err: errors.New("column is not categorical")}
	}
	return col, nil
}

func numeric(stage string, X *dataset.Frame, name string) (*dataset.Column, error) {
	col, ok := X.Column(name)
	if !ok {
		return nil, &StageError{Stage: stage, Variable: name, Err: errors.New("column not found")}
	}
	if col.Kind != dataset.Numeric {
		return nil, &StageError{Stage: stage, Variable: name, Err: errors.New("column is not numeric")}
	}
	return col, nil
}

// RareLabelEncoder groups categories seen in fewer than Tol of the training
// rows under RareLabel. Variables with no more than NCategories distinct
// values keep every category they were fitted on.
type RareLabelEncoder struct {
	Variables   []string            `json:"variables"`
	Tol         float64             `json:"tol"`
	NCategories int                 `json:"n_categories"`
	Frequent    map[string][]string `json:"frequent"`
}

func (e *RareLabelEncoder) Name() string { return "rare_label_encoder" }

func (e *RareLabelEncoder) Fit(X *dataset.Frame) error {
	e.Frequent = make(map[string][]string, len(e.Variables))
	for _, v := range e.Variables {
		col, err := categorical(e.Name(), X, v)
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, c := range col.Cat {
			counts[c]++
		}

		keep := make([]string, 0, len(counts))
		for c, n := range counts {
			if len(counts) <= e.NCategories || float64(n)/float64(col.Len()) >= e.Tol {
				keep = append(keep, c)
			}
		}
		sort.Slice(keep, func(i, j int) bool {
			if counts[keep[i]] != counts[keep[j]] {
				return counts[keep[i]] > counts[keep[j]]
			}
			return keep[i] < keep[j]
		})
		e.Frequent[v] = keep
	}
	return nil
}

func (e *RareLabelEncoder) Transform(X *dataset.Frame) (*dataset.Frame, error) {
	if e.Frequent == nil {
		return nil, errors.Wrap(ErrNotFitted, e.Name())
	}
	out := X.Clone()
	for _, v := range e.Variables {
		col, err := categorical(e.Name(), X, v)
		if err != nil {
			return nil, err
		}
		keep := make(map[string]bool, len(e.Frequent[v]))
		for _, c := range e.Frequent[v] {
			keep[c] = true
		}
		values := make([]string, col.Len())
		for i, c := range col.Cat {
			if keep[c] {
				values[i] = c
			} else {
				values[i] = RareLabel
			}
		}
		if err := out.Set(&dataset.Column{Name: v, Kind: dataset.Categorical, Cat: values}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OneHotEncoder replaces each variable by one 0/1 column per category seen
// at fit, named variable_category. Dummy columns are appended after the
// untouched columns.
type OneHotEncoder struct {
	Variables  []string            `json:"variables"`
	Categories map[string][]string `json:"categories"`
}

func (e *OneHotEncoder) Name() string { return "one_hot_encoder" }

func (e *OneHotEncoder) Fit(X *dataset.Frame) error {
	e.Categories = make(map[string][]string, len(e.Variables))
	for _, v := range e.Variables {
		col, err := categorical(e.Name(), X, v)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		var cats []string
		for _, c := range col.Cat {
			if !seen[c] {
				seen[c] = true
				cats = append(cats, c)
			}
		}
		e.Categories[v] = cats
	}
	return nil
}

func (e *OneHotEncoder) Transform(X *dataset.Frame) (*dataset.Frame, error) {
	if e.Categories == nil {
		return nil, errors.Wrap(ErrNotFitted, e.Name())
	}
	out := X.Drop(e.Variables...)
	for _, v := range e.Variables {
		col, err := categorical(e.Name(), X, v)
		if err != nil {
			return nil, err
		}
		pos := make(map[string]int, len(e.Categories[v]))
		dummies := make([][]float64, len(e.Categories[v]))
		for i, c := range e.Categories[v] {
			pos[c] = i
			dummies[i] = make([]float64, col.Len())
		}
		for row, c := range col.Cat {
			i, ok := pos[c]
			if !ok {
				return nil, &StageError{Stage: e.Name(), Variable: v, Err: errors.Wrapf(ErrUnseenCategory, "%q", c)}
			}
			dummies[i][row] = 1
		}
		for i, c := range e.Categories[v] {
			if err := out.AddNumeric(v+"_"+c, dummies[i]); err != nil {
				return nil, &StageError{Stage: e.Name(), Variable: v, Err: err}
			}
		}
	}
	return out, nil
}

// MinMaxScaler maps each numeric variable onto [0, 1] using the training
// range. A constant variable is shifted but not scaled.
type MinMaxScaler struct {
	Variables []string           `json:"variables"`
	Min       map[string]float64 `json:"min"`
	Scale     map[string]float64 `json:"scale"`
}

func (s *MinMaxScaler) Name() string { return "min_max_scaler" }

func (s *MinMaxScaler) Fit(X *dataset.Frame) error {
	s.Min = make(map[string]float64, len(s.Variables))
	s.Scale = make(map[string]float64, len(s.Variables))
	for _, v := range s.Variables {
		col, err := numeric(s.Name(), X, v)
		if err != nil {
			return err
		}
		if col.Len() == 0 {
			return &StageError{Stage: s.Name(), Variable: v, Err: errors.New("no rows to fit")}
		}
		lo, hi := floats.Min(col.Num), floats.Max(col.Num)
		s.Min[v] = lo
		s.Scale[v] = 1
		if hi > lo {
			s.Scale[v] = 1 / (hi - lo)
		}
	}
	return nil
}

func (s *MinMaxScaler) Transform(X *dataset.Frame) (*dataset.Frame, error) {
	if s.Min == nil {
		return nil, errors.Wrap(ErrNotFitted, s.Name())
	}
	out := X.Clone()
	for _, v := range s.Variables {
		col, err := numeric(s.Name(), X, v)
		if err != nil {
			return nil, err
		}
		scaled := make([]float64, col.Len())
		copy(scaled, col.Num)
		floats.AddConst(-s.Min[v], scaled)
		floats.Scale(s.Scale[v], scaled)
		if err := out.Set(&dataset.Column{Name: v, Kind: dataset.Numeric, Num: scaled}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
