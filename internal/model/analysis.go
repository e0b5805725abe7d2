package model

// Param is a display-friendly rendering of one decoded argument.
type Param struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DecodedCall is the recognized function call carried by a transaction.
type DecodedCall struct {
	Name   string        `json:"name"`
	Args   []interface{} `json:"-"`
	Params []Param       `json:"params"`
}

// AnalysisResult is the guard's verdict on a single transaction.
type AnalysisResult struct {
	OK      bool         `json:"ok"`
	Risks   []RiskKind   `json:"risks"`
	Decoded *DecodedCall `json:"decoded"`
}

// DecodedName returns the decoded function name, or "" when nothing was recognized.
func (r AnalysisResult) DecodedName() string {
	if r.Decoded == nil {
		return ""
	}
	return r.Decoded.Name
}

// HasRisk reports whether kind is among the findings.
func (r AnalysisResult) HasRisk(kind RiskKind) bool {
	for _, risk := range r.Risks {
		if risk == kind {
			return true
		}
	}
	return false
}

// RiskLabels returns the human-readable labels of all findings in order.
func (r AnalysisResult) RiskLabels() []string {
	labels := make([]string, 0, len(r.Risks))
	for _, risk := range r.Risks {
		labels = append(labels, risk.Label())
	}
	return labels
}
