// Package matching ranks candidate providers for a maintenance case.
// Scoring is pure: same case profile and candidate set always produce the
// same ranking, with a stable provider-id tie-break.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"propcare_backend/internal/providers"
	"propcare_backend/internal/triage"

	"github.com/google/uuid"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic significantly.
	scoreVersion = "2026-v1"

	// Factor weights. They sum to 100 so the combined score stays in the
	// 0-100 range. Specialization overlap carries the primary weight; no
	// single factor can veto a provider on its own.
	weightSpecialization = 40.0
	weightWorkload       = 20.0
	weightRating         = 15.0
	weightResponseTime   = 15.0
	weightEmergency      = 10.0

	// neutralRating is assumed when a provider has no rating yet.
	// Missing data is neutral, not a penalty.
	neutralRating = 3.5

	// responseCeilingMinutes is the response time at or beyond which the
	// response-time sub-score bottoms out.
	responseCeilingMinutes = 24 * 60
)

// CaseProfile is the slice of case data relevant to matching. It is built
// from the case record and its classification result.
type CaseProfile struct {
	Category       string
	RequiredSkills []string
	Urgency        string
}

// MatchResult is one ranked candidate.
type MatchResult struct {
	ProviderID    uuid.UUID `json:"providerId"`
	Score         float64   `json:"score"`
	Justification string    `json:"justification"`
	ScoreVersion  string    `json:"scoreVersion"`
}

// Scorer ranks providers for a case.
type Scorer struct{}

// NewScorer creates a contractor scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Rank scores the candidates for the case and returns them best-first.
// Inactive providers are excluded before scoring; providers with no
// remaining capacity (workload at or above max jobs per day) are treated as
// having no availability and are excluded as well. The result is empty only
// when no candidate survives those filters.
func (s *Scorer) Rank(profile CaseProfile, candidates []providers.Provider) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))

	for _, p := range candidates {
		if !p.Active {
			continue
		}
		if p.MaxJobsPerDay > 0 && p.CurrentWorkload >= p.MaxJobsPerDay {
			// Availability completely absent: the only hard veto.
			continue
		}

		score, reasons := scoreProvider(profile, p)
		results = append(results, MatchResult{
			ProviderID:    p.ID,
			Score:         score,
			Justification: strings.Join(reasons, "; "),
			ScoreVersion:  scoreVersion,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProviderID.String() < results[j].ProviderID.String()
	})

	return results
}

func scoreProvider(profile CaseProfile, p providers.Provider) (float64, []string) {
	var reasons []string

	specialization := specializationScore(profile, p)
	reasons = append(reasons, fmt.Sprintf("specialization match %.0f%%", specialization*100))

	workload := workloadScore(p)
	reasons = append(reasons, fmt.Sprintf("workload %d/%d", p.CurrentWorkload, p.MaxJobsPerDay))

	rating := ratingScore(p)
	if p.Rating != nil {
		reasons = append(reasons, fmt.Sprintf("rating %.1f", *p.Rating))
	} else {
		reasons = append(reasons, "unrated")
	}

	response := responseTimeScore(p)
	reasons = append(reasons, fmt.Sprintf("avg response %dm", p.AvgResponseMinutes))

	emergency := 0.0
	if profile.Urgency == triage.UrgencyUrgent {
		if p.EmergencyAvailable {
			emergency = 1.0
			reasons = append(reasons, "emergency available")
		} else {
			reasons = append(reasons, "no emergency availability")
		}
	}

	score := specialization*weightSpecialization +
		workload*weightWorkload +
		rating*weightRating +
		response*weightResponseTime +
		emergency*weightEmergency

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return score, reasons
}

// specializationScore measures overlap between the case's category plus
// required skills and the provider's specialization tags.
func specializationScore(profile CaseProfile, p providers.Provider) float64 {
	tags := make(map[string]bool, len(p.Specializations))
	for _, tag := range p.Specializations {
		tags[normalizeTag(tag)] = true
	}
	if len(tags) == 0 {
		return 0
	}

	wanted := make([]string, 0, len(profile.RequiredSkills)+1)
	if profile.Category != "" {
		wanted = append(wanted, profile.Category)
	}
	wanted = append(wanted, profile.RequiredSkills...)
	if len(wanted) == 0 {
		// Nothing to match against; treat as a partial fit rather than zero
		// so generalists remain eligible for unclassified work.
		return 0.5
	}

	matched := 0
	for _, skill := range wanted {
		if tags[normalizeTag(skill)] {
			matched++
		}
	}

	return float64(matched) / float64(len(wanted))
}

// workloadScore prefers less-loaded providers: 1.0 when idle, approaching 0
// as the provider nears its daily capacity.
func workloadScore(p providers.Provider) float64 {
	if p.MaxJobsPerDay <= 0 {
		return 0.5
	}
	remaining := float64(p.MaxJobsPerDay-p.CurrentWorkload) / float64(p.MaxJobsPerDay)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ratingScore maps the 0-5 rating scale onto 0-1. Missing ratings are
// treated as neutral.
func ratingScore(p providers.Provider) float64 {
	rating := neutralRating
	if p.Rating != nil {
		rating = *p.Rating
	}
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return rating / 5
}

// responseTimeScore rewards fast responders: 1.0 at zero minutes, linearly
// down to 0 at the ceiling.
func responseTimeScore(p providers.Provider) float64 {
	if p.AvgResponseMinutes <= 0 {
		return 1
	}
	if p.AvgResponseMinutes >= responseCeilingMinutes {
		return 0
	}
	return 1 - float64(p.AvgResponseMinutes)/float64(responseCeilingMinutes)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
