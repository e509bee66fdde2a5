package training

import (
	"github.com/pkg/errors"
	"github.com/sjwhitworth/golearn/evaluation"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

const (
	negativeClass = "0"
	positiveClass = "1"
)

// ConfusionMatrix tallies actual (outer key) against predicted (inner key)
// 0/1 labels.
func ConfusionMatrix(actual, predicted []float64) (evaluation.ConfusionMatrix, error) {
	if len(actual) != len(predicted) {
		return nil, errors.Errorf("actual (%d) and predicted (%d) lengths differ", len(actual), len(predicted))
	}
	cm := evaluation.ConfusionMatrix{
		negativeClass: {negativeClass: 0, positiveClass: 0},
		positiveClass: {negativeClass: 0, positiveClass: 0},
	}
	for i := range actual {
		cm[label(actual[i])][label(predicted[i])]++
	}
	return cm, nil
}

func label(v float64) string {
	if v == 1 {
		return positiveClass
	}
	return negativeClass
}

// ClassificationMetrics scores predictions for the positive class. A metric
// whose denominator is zero is reported as 0.
func ClassificationMetrics(actual, predicted []float64) (models.Metrics, error) {
	if len(actual) == 0 {
		return models.Metrics{}, errors.New("no predictions to score")
	}
	cm, err := ConfusionMatrix(actual, predicted)
	if err != nil {
		return models.Metrics{}, err
	}

	tp := evaluation.GetTruePositives(positiveClass, cm)
	fp := evaluation.GetFalsePositives(positiveClass, cm)
	fn := evaluation.GetFalseNegatives(positiveClass, cm)

	var m models.Metrics
	if tp+fp > 0 {
		m.Precision = evaluation.GetPrecision(positiveClass, cm)
	}
	if tp+fn > 0 {
		m.Recall = evaluation.GetRecall(positiveClass, cm)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.Accuracy = evaluation.GetAccuracy(cm)
	return m, nil
}
