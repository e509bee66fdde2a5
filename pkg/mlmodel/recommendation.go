package mlmodel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// ErrNoReports is returned when there is nothing to recommend from.
var ErrNoReports = errors.New("no model reports to recommend from")

// overfitGap is the train/test F1 difference above which a model is
// flagged in the reasoning.
const overfitGap = 0.1

// Recommendation names the model to carry forward and why.
type Recommendation struct {
	Kind      models.ModelKind             `json:"kind"`
	Score     float64                      `json:"score"`
	Reasoning string                       `json:"reasoning"`
	AllScores map[models.ModelKind]float64 `json:"all_scores"`
}

// RecommendationEngine ranks evaluated roster models
type RecommendationEngine struct{}

// NewRecommendationEngine creates a new recommendation engine
func NewRecommendationEngine() *RecommendationEngine {
	return &RecommendationEngine{}
}

// Recommend picks the report with the best test F1. Ties fall back to the
// cross-validated F1 mean and then to the order the reports were given in.
func (re *RecommendationEngine) Recommend(reports []*models.ModelReport) (*Recommendation, error) {
	var best *models.ModelReport
	scores := make(map[models.ModelKind]float64, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		scores[r.Kind] = r.Test.F1
		if best == nil || better(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNoReports
	}

	return &Recommendation{
		Kind:      best.Kind,
		Score:     best.Test.F1,
		Reasoning: re.generateReasoning(best, scores),
		AllScores: scores,
	}, nil
}

func better(a, b *models.ModelReport) bool {
	if a.Test.F1 != b.Test.F1 {
		return a.Test.F1 > b.Test.F1
	}
	return a.CVF1Mean > b.CVF1Mean
}

// generateReasoning creates a human-readable explanation for the recommendation
func (re *RecommendationEngine) generateReasoning(best *models.ModelReport, scores map[models.ModelKind]float64) string {
	reasons := []string{fmt.Sprintf("%s recommended based on:", best.Kind)}
	reasons = append(reasons, fmt.Sprintf("- Highest test F1 (%.4f) across %d models", best.Test.F1, len(scores)))
	reasons = append(reasons, fmt.Sprintf("- Cross-validated F1 %.4f ± %.4f", best.CVF1Mean, best.CVF1Std))
	if best.Test.Recall < best.Test.Precision {
		reasons = append(reasons, fmt.Sprintf("- Recall (%.4f) trails precision; buyers are being missed", best.Test.Recall))
	}
	if gap := best.Train.F1 - best.Test.F1; gap > overfitGap {
		reasons = append(reasons, fmt.Sprintf("- Train/test F1 gap of %.4f suggests overfitting", gap))
	}
	return strings.Join(reasons, "\n")
}
