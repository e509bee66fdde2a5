package models

// SessionRecord is one row of the online-shoppers dataset. The optional
// ToSplit column is present in the processed train/test files only.
type SessionRecord struct {
	Administrative         float64 `csv:"Administrative"`
	AdministrativeDuration float64 `csv:"Administrative_Duration"`
	Informational          float64 `csv:"Informational"`
	InformationalDuration  float64 `csv:"Informational_Duration"`
	ProductRelated         float64 `csv:"ProductRelated"`
	ProductRelatedDuration float64 `csv:"ProductRelated_Duration"`
	BounceRates            float64 `csv:"BounceRates"`
	ExitRates              float64 `csv:"ExitRates"`
	PageValues             float64 `csv:"PageValues"`
	SpecialDay             float64 `csv:"SpecialDay"`
	Month                  string  `csv:"Month"`
	OperatingSystems       int     `csv:"OperatingSystems"`
	Browser                int     `csv:"Browser"`
	Region                 int     `csv:"Region"`
	TrafficType            int     `csv:"TrafficType"`
	VisitorType            string  `csv:"VisitorType"`
	Weekend                bool    `csv:"Weekend"`
	Revenue                bool    `csv:"Revenue"`
	ToSplit                string  `csv:"to_split,omitempty"`
}

// Numeric returns the value of a numeric column by its dataset name.
func (r *SessionRecord) Numeric(name string) (float64, bool) {
	switch name {
	case "Administrative":
		return r.Administrative, true
	case "Administrative_Duration":
		return r.AdministrativeDuration, true
	case "Informational":
		return r.Informational, true
	case "Informational_Duration":
		return r.InformationalDuration, true
	case "ProductRelated":
		return r.ProductRelated, true
	case "ProductRelated_Duration":
		return r.ProductRelatedDuration, true
	case "BounceRates":
		return r.BounceRates, true
	case "ExitRates":
		return r.ExitRates, true
	case "PageValues":
		return r.PageValues, true
	case "SpecialDay":
		return r.SpecialDay, true
	}
	return 0, false
}

// Raw returns the untyped value of a non-numeric column by its dataset name.
func (r *SessionRecord) Raw(name string) (any, bool) {
	switch name {
	case "Month":
		return r.Month, true
	case "OperatingSystems":
		return r.OperatingSystems, true
	case "Browser":
		return r.Browser, true
	case "Region":
		return r.Region, true
	case "TrafficType":
		return r.TrafficType, true
	case "VisitorType":
		return r.VisitorType, true
	case "Weekend":
		return r.Weekend, true
	case "Revenue":
		return r.Revenue, true
	case "to_split":
		return r.ToSplit, true
	}
	return nil, false
}
