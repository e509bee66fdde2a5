// Package datasettest generates synthetic session data for tests.
package datasettest

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/dataset"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

var months = []string{"Mar", "May", "Nov", "Dec"}

// Sessions returns n reproducible records. Roughly 30% convert, and
// converting sessions carry much higher PageValues, so the label is
// learnable. Every categorical value is common, so any reasonable split
// sees all of them on both sides.
func Sessions(n int, seed int64) []*models.SessionRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*models.SessionRecord, n)
	for i := 0; i < n; i++ {
		revenue := rng.Float64() < 0.3
		pageValues := rng.Float64() * 5
		exitRates := 0.02 + rng.Float64()*0.1
		if revenue {
			pageValues = 20 + rng.Float64()*30
			exitRates = 0.01 + rng.Float64()*0.03
		}
		visitor := "Returning_Visitor"
		if i%5 == 0 {
			visitor = "New_Visitor"
		}
		out[i] = &models.SessionRecord{
			Administrative:         float64(rng.Intn(10)),
			AdministrativeDuration: rng.Float64() * 300,
			Informational:          float64(rng.Intn(4)),
			InformationalDuration:  rng.Float64() * 100,
			ProductRelated:         float64(1 + rng.Intn(80)),
			ProductRelatedDuration: rng.Float64() * 3000,
			BounceRates:            rng.Float64() * 0.05,
			ExitRates:              exitRates,
			PageValues:             pageValues,
			SpecialDay:             float64(rng.Intn(3)) * 0.4,
			Month:                  months[i%len(months)],
			OperatingSystems:       1 + i%3,
			Browser:                1 + (i/3)%2,
			Region:                 1 + (i/2)%4,
			TrafficType:            1 + (i/5)%3,
			VisitorType:            visitor,
			Weekend:                i%3 == 0,
			Revenue:                revenue,
		}
	}
	return out
}

// WriteRaw writes n synthetic sessions to dir/raw/data.csv and returns a
// split config pointing at dir/processed.
func WriteRaw(t testing.TB, dir string, n int) dataset.SplitConfig {
	t.Helper()
	cfg := dataset.SplitConfig{
		RawPath:      filepath.Join(dir, "raw", "data.csv"),
		ProcessedDir: filepath.Join(dir, "processed"),
		TestSize:     0.3,
		Seed:         42,
	}
	if err := dataset.WriteSessions(cfg.RawPath, Sessions(n, 7)); err != nil {
		t.Fatalf("write raw dataset: %v", err)
	}
	return cfg
}
