// Package triage wraps the external classification model that turns a raw
// maintenance report into a structured triage result. Every failure mode of
// the external call degrades to a deterministic fallback result; callers of
// Classify never receive an error.
package triage

import "strings"

// Urgency levels recognized by the engine.
const (
	UrgencyLow    = "Low"
	UrgencyMedium = "Medium"
	UrgencyHigh   = "High"
	UrgencyUrgent = "Urgent"
)

// Safety risk levels recognized by the engine.
const (
	SafetyRiskNone   = "None"
	SafetyRiskLow    = "Low"
	SafetyRiskMedium = "Medium"
	SafetyRiskHigh   = "High"
)

// DefaultCategory is used when neither the model nor the reporter supplied one.
const DefaultCategory = "General Maintenance"

// fallbackDurationMinutes is the fixed duration estimate of a fallback result.
const fallbackDurationMinutes = 120

// Photo is a report attachment handed to the vision sub-call.
type Photo struct {
	MIMEType string
	Data     []byte
}

// Report is the raw maintenance report to classify.
type Report struct {
	Title       string
	Description string
	// CategoryHint is the reporter-supplied category, used by the fallback
	// result when the model is unavailable.
	CategoryHint string
	Photos       []Photo
}

// Result is the structured outcome of one triage run. It is immutable once
// stored; a fresh run produces a new Result.
type Result struct {
	Category                 string   `json:"category"`
	Subcategory              string   `json:"subcategory"`
	Urgency                  string   `json:"urgency"`
	Complexity               string   `json:"complexity"`
	RequiredSkills           []string `json:"requiredSkills"`
	EstimatedDurationMinutes int      `json:"estimatedDurationMinutes"`
	SuggestedTimeWindow      string   `json:"suggestedTimeWindow"`
	SafetyRisk               string   `json:"safetyRisk"`
	Diagnosis                string   `json:"diagnosis"`
	TroubleshootingSteps     []string `json:"troubleshootingSteps"`
	PhotoAnalysis            string   `json:"photoAnalysis,omitempty"`
	ModelVersion             string   `json:"modelVersion"`
	// Fallback marks a deterministic default result produced because the
	// external model could not answer. All other fields are still valid.
	Fallback bool `json:"fallback"`
}

// FallbackResult builds the deterministic result used whenever the external
// model fails (timeout, malformed response, missing credentials). It goes
// through the same normalization path as model-derived results so callers
// only ever branch on the Fallback flag.
func FallbackResult(report Report) Result {
	category := strings.TrimSpace(report.CategoryHint)
	if category == "" {
		category = DefaultCategory
	}

	return normalize(Result{
		Category:                 category,
		Urgency:                  UrgencyMedium,
		Complexity:               "Unknown",
		EstimatedDurationMinutes: fallbackDurationMinutes,
		SafetyRisk:               SafetyRiskNone,
		Diagnosis:                "Automatic classification was unavailable; the report requires manual review.",
		ModelVersion:             "fallback",
		Fallback:                 true,
	})
}

// normalize coerces free-form model output into the enumerated vocabulary.
// It is applied to every result, model-derived and fallback alike.
func normalize(r Result) Result {
	r.Category = strings.TrimSpace(r.Category)
	if r.Category == "" {
		r.Category = DefaultCategory
	}
	r.Urgency = CoerceUrgency(r.Urgency)
	r.SafetyRisk = coerceSafetyRisk(r.SafetyRisk)
	if r.EstimatedDurationMinutes <= 0 {
		r.EstimatedDurationMinutes = fallbackDurationMinutes
	}
	if r.RequiredSkills == nil {
		r.RequiredSkills = []string{}
	}
	if r.TroubleshootingSteps == nil {
		r.TroubleshootingSteps = []string{}
	}
	return r
}

// CoerceUrgency maps arbitrary model output onto the four urgency levels.
// "Critical"/"Emergency" collapse into Urgent; anything unrecognized
// defaults to Medium.
func CoerceUrgency(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return UrgencyLow
	case "medium", "moderate", "normal":
		return UrgencyMedium
	case "high":
		return UrgencyHigh
	case "urgent", "critical", "emergency":
		return UrgencyUrgent
	default:
		return UrgencyMedium
	}
}

func coerceSafetyRisk(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return SafetyRiskNone
	case "low":
		return SafetyRiskLow
	case "medium", "moderate":
		return SafetyRiskMedium
	case "high", "critical", "severe":
		return SafetyRiskHigh
	default:
		return SafetyRiskNone
	}
}
