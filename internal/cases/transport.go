package cases

import (
	"time"

	"github.com/google/uuid"
)

// reportCaseRequest is the payload for reporting a maintenance case.
type reportCaseRequest struct {
	Title        string     `json:"title" validate:"required,min=3,max=200"`
	Description  string     `json:"description" validate:"required,min=10,max=5000"`
	CategoryHint string     `json:"categoryHint" validate:"omitempty,max=100"`
	PropertyID   *uuid.UUID `json:"propertyId"`
}

// caseResponse is the API representation of a case.
type caseResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PropertyID         *uuid.UUID `json:"propertyId,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Status             string     `json:"status"`
	TriageStatus       string     `json:"triageStatus"`
	Category           *string    `json:"category,omitempty"`
	Urgency            *string    `json:"urgency,omitempty"`
	AssignedProviderID *uuid.UUID `json:"assignedProviderId,omitempty"`
	MatchScore         *float64   `json:"matchScore,omitempty"`
	MatchJustification *string    `json:"matchJustification,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toCaseResponse(item *Case) caseResponse {
	return caseResponse{
		ID:                 item.ID,
		PropertyID:         item.PropertyID,
		Title:              item.Title,
		Description:        item.Description,
		Status:             item.Status,
		TriageStatus:       item.TriageStatus,
		Category:           item.Category,
		Urgency:            item.Urgency,
		AssignedProviderID: item.AssignedProviderID,
		MatchScore:         item.MatchScore,
		MatchJustification: item.MatchJustification,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}

func toCaseResponses(items []Case) []caseResponse {
	out := make([]caseResponse, len(items))
	for i := range items {
		out[i] = toCaseResponse(&items[i])
	}
	return out
}

// guidanceResponse surfaces the AI guidance of the latest classification.
type guidanceResponse struct {
	Category                 string    `json:"category"`
	Subcategory              string    `json:"subcategory,omitempty"`
	Urgency                  string    `json:"urgency"`
	Complexity               string    `json:"complexity,omitempty"`
	RequiredSkills           []string  `json:"requiredSkills"`
	EstimatedDurationMinutes int       `json:"estimatedDurationMinutes"`
	SuggestedTimeWindow      string    `json:"suggestedTimeWindow,omitempty"`
	SafetyRisk               string    `json:"safetyRisk"`
	Diagnosis                string    `json:"diagnosis"`
	TroubleshootingSteps     []string  `json:"troubleshootingSteps"`
	PhotoAnalysis            string    `json:"photoAnalysis,omitempty"`
	ModelVersion             string    `json:"modelVersion"`
	Fallback                 bool      `json:"fallback"`
	ClassifiedAt             time.Time `json:"classifiedAt"`
}

func toGuidanceResponse(c *Classification) guidanceResponse {
	return guidanceResponse{
		Category:                 c.Category,
		Subcategory:              c.Subcategory,
		Urgency:                  c.Urgency,
		Complexity:               c.Complexity,
		RequiredSkills:           c.RequiredSkills,
		EstimatedDurationMinutes: c.EstimatedDurationMinutes,
		SuggestedTimeWindow:      c.SuggestedTimeWindow,
		SafetyRisk:               c.SafetyRisk,
		Diagnosis:                c.Diagnosis,
		TroubleshootingSteps:     c.TroubleshootingSteps,
		PhotoAnalysis:            c.PhotoAnalysis,
		ModelVersion:             c.ModelVersion,
		Fallback:                 c.Fallback,
		ClassifiedAt:             c.CreatedAt,
	}
}

// photoResponse confirms a stored attachment.
type photoResponse struct {
	ID        uuid.UUID `json:"id"`
	ObjectKey string    `json:"objectKey"`
	MIMEType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPhotoResponse(p *Photo) photoResponse {
	return photoResponse{
		ID:        p.ID,
		ObjectKey: p.ObjectKey,
		MIMEType:  p.MIMEType,
		SizeBytes: p.SizeBytes,
		CreatedAt: p.CreatedAt,
	}
}
