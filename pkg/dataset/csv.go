package dataset

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/features"
	"github.com/mathdeoliveira/customers-intention-purchasing/pkg/models"
)

// ReadSessions parses a session CSV file.
func ReadSessions(path string) ([]*models.SessionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var records []*models.SessionRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return records, nil
}

// WriteSessions writes records to path, replacing any existing file.
func WriteSessions(path string, records []*models.SessionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := gocsv.MarshalFile(&records, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// StratKeyOf builds the stratification key Month_Revenue.
func StratKeyOf(r *models.SessionRecord) string {
	return r.Month + "_" + features.FormatCategory(r.Revenue)
}

// FrameFromSessions converts records to a feature frame (label excluded) and
// a 0/1 label vector. Columns follow raw dataset order; the registry decides
// which are categorical. The to_split column is included when withStratKey
// is set.
func FrameFromSessions(records []*models.SessionRecord, withStratKey bool) (*Frame, []float64, error) {
	frame := NewFrame()
	n := len(records)

	for _, name := range features.RequestFields() {
		if features.IsCategorical(name) {
			values := make([]string, n)
			for i, r := range records {
				raw, ok := r.Raw(name)
				if !ok {
					return nil, nil, errors.Errorf("session record has no categorical field %q", name)
				}
				values[i] = features.FormatCategory(raw)
			}
			if err := frame.AddCategorical(name, values); err != nil {
				return nil, nil, err
			}
			continue
		}
		values := make([]float64, n)
		for i, r := range records {
			v, ok := r.Numeric(name)
			if !ok {
				return nil, nil, errors.Errorf("session record has no numeric field %q", name)
			}
			values[i] = v
		}
		if err := frame.AddNumeric(name, values); err != nil {
			return nil, nil, err
		}
	}

	if withStratKey {
		keys := make([]string, n)
		for i, r := range records {
			keys[i] = r.ToSplit
		}
		if err := frame.AddCategorical(features.StratKey, keys); err != nil {
			return nil, nil, err
		}
	}

	labels := make([]float64, n)
	for i, r := range records {
		if r.Revenue {
			labels[i] = 1
		}
	}
	return frame, labels, nil
}
