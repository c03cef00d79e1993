package potability

import (
	"encoding/json"
	"fmt"

	"aquamind/ml"
)

// Outcome is the ternary result of classifying one sample.
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomePotable
	OutcomeNotPotable
)

func (o Outcome) String() string {
	switch o {
	case OutcomePotable:
		return "potable"
	case OutcomeNotPotable:
		return "not_potable"
	default:
		return "error"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is what Classify hands back for display.
type Result struct {
	Outcome    Outcome    `json:"outcome"`
	Potable    bool       `json:"potable"`
	Confidence *float64   `json:"confidence,omitempty"`
	Err        string     `json:"error,omitempty"`
	Warnings   []ml.Issue `json:"warnings,omitempty"`

	// Cause is the underlying error for Outcome == OutcomeError.
	Cause error `json:"-"`
}

func potableResult(potable bool, confidence *float64) Result {
	outcome := OutcomeNotPotable
	if potable {
		outcome = OutcomePotable
	}
	return Result{Outcome: outcome, Potable: potable, Confidence: confidence}
}

func errorResult(err error) Result {
	return Result{Outcome: OutcomeError, Err: err.Error(), Cause: err}
}

func (r Result) clone() Result {
	if r.Confidence != nil {
		c := *r.Confidence
		r.Confidence = &c
	}
	r.Warnings = append([]ml.Issue(nil), r.Warnings...)
	return r
}

// Failed reports whether the result is an error.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeError
}

// Message renders the outcome as a sentence for people.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomePotable:
		return "POTABLE (safe to drink)"
	case OutcomeNotPotable:
		return "NOT POTABLE (not safe to drink)"
	default:
		return "Error while making prediction: " + r.Err
	}
}

// ConfidencePercent renders the confidence as "87.34%", or "" when the
// model gave none.
func (r Result) ConfidencePercent() string {
	if r.Confidence == nil {
		return ""
	}
	return FormatPercent(*r.Confidence)
}

// FormatPercent scales a probability to a two-decimal percentage.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}

func (r Result) String() string {
	if pct := r.ConfidencePercent(); pct != "" && !r.Failed() {
		return fmt.Sprintf("%s, model confidence (potable): %s", r.Message(), pct)
	}
	return r.Message()
}

// MarshalJSON adds the rendered message and percentage next to the raw
// fields.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Message string `json:"message"`
		Percent string `json:"confidence_percent,omitempty"`
	}{plain(r), r.Message(), r.ConfidencePercent()})
}

// BatchResult holds the raw outputs of one predict call over a table.
// Rows are deliberately not normalised; see ClassifyBatch.
type BatchResult struct {
	Columns     []string `json:"columns"`
	Rows        int      `json:"rows"`
	Predictions []any    `json:"predictions,omitempty"`
	Err         string   `json:"error,omitempty"`

	Cause error `json:"-"`
}

func (b BatchResult) Failed() bool {
	return b.Err != ""
}
