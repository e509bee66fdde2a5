package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/mlmodel"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/preprocess"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/storage"
)

var (
	// ErrMissingField is returned when a request lacks one of the session fields.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a numeric field is not a number.
	ErrInvalidField = errors.New("invalid field")
)

// PredictionResponse carries [P(no purchase), P(purchase)] per row.
type PredictionResponse struct {
	Pred [][]float64 `json:"pred"`
}

// ParseRequest turns one decoded request body into a single-row frame.
// Every session field must be present.
func ParseRequest(body map[string]any) (*dataset.Frame, error) {
	for _, name := range features.RequestFields() {
		if _, ok := body[name]; !ok {
			return nil, errors.Wrap(ErrMissingField, name)
		}
	}

	frame := dataset.NewFrame()
	for _, name := range features.RequestFields() {
		raw := body[name]
		if features.IsCategorical(name) {
			if err := frame.AddCategorical(name, []string{features.FormatCategory(raw)}); err != nil {
				return nil, err
			}
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidField, "%s: %v", name, err)
		}
		if err := frame.AddNumeric(name, []float64{v}); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case json.Number:
		return val.Float64()
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

// Predict loads the serving artifacts and scores X. Artifacts are read on
// every call so a republished model is picked up without a restart.
func Predict(ctx context.Context, store storage.Store, X *dataset.Frame) ([][]float64, error) {
	var pipe preprocess.Pipeline
	if err := storage.Load(ctx, store, storage.PipelineArtifact, &pipe); err != nil {
		return nil, err
	}
	model, err := mlmodel.LoadClassifier(ctx, store, storage.FinalModelArtifact)
	if err != nil {
		return nil, err
	}

	Xm, err := pipe.TransformMatrix(X)
	if err != nil {
		return nil, err
	}
	proba, err := model.PredictProba(Xm)
	if err != nil {
		return nil, err
	}

	rows, _ := proba.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = []float64{proba.At(i, 0), proba.At(i, 1)}
	}
	return out, nil
}

// handlePredict handles POST /predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	X, err := ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred, err := Predict(r.Context(), s.store, X)
	if err != nil {
		s.logger.Error("prediction failed", zap.Error(err))
		http.Error(w, fmt.Sprintf("Prediction failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PredictionResponse{Pred: pred})
}
