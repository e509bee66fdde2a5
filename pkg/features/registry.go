// Package features is the single source of truth for the dataset's column
// names and their kinds. The splitter, the preparer and the prediction
// endpoint all read from here so that training and serving coerce the same
// columns the same way.
package features

import (
	"encoding/json"
	"math"
	"strconv"
)

const (
	// Label is the binary target column.
	Label = "Revenue"
	// StratKey holds Month + "_" + Revenue and drives stratified splitting.
	StratKey = "to_split"
	// Month is categorical in the raw CSV already.
	Month = "Month"
)

var categorical = []string{
	"OperatingSystems",
	"Browser",
	"Region",
	"TrafficType",
	"VisitorType",
	"Weekend",
}

var numeric = []string{
	"Administrative",
	"Administrative_Duration",
	"Informational",
	"Informational_Duration",
	"ProductRelated",
	"ProductRelated_Duration",
	"BounceRates",
	"ExitRates",
	"PageValues",
	"SpecialDay",
}

// CategoricalFeatures returns the columns coerced to categorical on load.
func CategoricalFeatures() []string {
	return append([]string(nil), categorical...)
}

// NumericFeatures returns the raw numeric columns in dataset order.
func NumericFeatures() []string {
	return append([]string(nil), numeric...)
}

// RequestFields returns the 17 fields a prediction request must carry, in
// raw dataset order.
func RequestFields() []string {
	fields := make([]string, 0, len(numeric)+1+len(categorical))
	fields = append(fields, numeric...)
	fields = append(fields, Month)
	fields = append(fields, categorical...)
	return fields
}

// IsCategorical reports whether a raw column is treated as categorical.
// The answer never depends on the data.
func IsCategorical(name string) bool {
	if name == Month || name == StratKey {
		return true
	}
	for _, c := range categorical {
		if c == name {
			return true
		}
	}
	return false
}

// FormatCategory renders a raw value as a category label. Booleans become
// True/False and integral numbers lose their decimals, so "2", 2 and 2.0 all
// map to the same category.
func FormatCategory(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil {
			return formatFloat(f)
		}
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
