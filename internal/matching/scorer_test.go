package matching

import (
	"testing"

	"propcare_backend/internal/providers"
	"propcare_backend/internal/triage"

	"github.com/google/uuid"
)

func ratingPtr(v float64) *float64 { return &v }

func plumber(id string, opts func(*providers.Provider)) providers.Provider {
	p := providers.Provider{
		ID:                 uuid.MustParse(id),
		Name:               "provider-" + id[:8],
		Specializations:    []string{"Plumbing"},
		AvgResponseMinutes: 60,
		Rating:             ratingPtr(4.0),
		MaxJobsPerDay:      5,
		CurrentWorkload:    1,
		Active:             true,
	}
	if opts != nil {
		opts(&p)
	}
	return p
}

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
)

func TestRankExcludesInactiveProviders(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing"}
	candidates := []providers.Provider{
		plumber(idA, nil),
		plumber(idB, func(p *providers.Provider) { p.Active = false }),
	}

	results := NewScorer().Rank(profile, candidates)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ProviderID != uuid.MustParse(idA) {
		t.Fatal("inactive provider must never be ranked")
	}
}

func TestRankExcludesFullyBookedProviders(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing"}
	candidates := []providers.Provider{
		plumber(idA, func(p *providers.Provider) { p.CurrentWorkload = 5 }),
	}

	results := NewScorer().Rank(profile, candidates)
	if len(results) != 0 {
		t.Fatal("provider with no remaining capacity must be excluded")
	}
}

func TestRankOrdersBySpecializationOverlap(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing", RequiredSkills: []string{"pipefitting"}}
	candidates := []providers.Provider{
		plumber(idA, func(p *providers.Provider) { p.Specializations = []string{"Electrical"} }),
		plumber(idB, func(p *providers.Provider) { p.Specializations = []string{"Plumbing", "Pipefitting"} }),
	}

	results := NewScorer().Rank(profile, candidates)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ProviderID != uuid.MustParse(idB) {
		t.Fatal("specialist should outrank non-specialist")
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected strictly higher score, got %.1f vs %.1f", results[0].Score, results[1].Score)
	}
}

func TestRankPrefersLessLoadedProviders(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing"}
	candidates := []providers.Provider{
		plumber(idA, func(p *providers.Provider) { p.CurrentWorkload = 4 }),
		plumber(idB, func(p *providers.Provider) { p.CurrentWorkload = 0 }),
	}

	results := NewScorer().Rank(profile, candidates)
	if results[0].ProviderID != uuid.MustParse(idB) {
		t.Fatal("less-loaded provider should rank first")
	}
}

func TestRankMissingRatingIsNeutralNotZero(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing"}
	candidates := []providers.Provider{
		plumber(idA, func(p *providers.Provider) { p.Rating = nil }),
		plumber(idB, func(p *providers.Provider) { p.Rating = ratingPtr(0.5) }),
	}

	results := NewScorer().Rank(profile, candidates)
	if results[0].ProviderID != uuid.MustParse(idA) {
		t.Fatal("unrated provider should outrank a poorly rated one")
	}
}

func TestRankEmergencyBonusOnUrgentCases(t *testing.T) {
	urgent := CaseProfile{Category: "Plumbing", Urgency: triage.UrgencyUrgent}
	candidates := []providers.Provider{
		plumber(idA, nil),
		plumber(idB, func(p *providers.Provider) { p.EmergencyAvailable = true }),
	}

	results := NewScorer().Rank(urgent, candidates)
	if results[0].ProviderID != uuid.MustParse(idB) {
		t.Fatal("emergency-available provider should rank first on urgent cases")
	}

	// Without urgency the bonus must not apply; the tie-break decides.
	routine := CaseProfile{Category: "Plumbing", Urgency: triage.UrgencyLow}
	results = NewScorer().Rank(routine, candidates)
	if results[0].Score != results[1].Score {
		t.Fatal("emergency availability must not affect non-urgent cases")
	}
}

func TestRankDeterministicTieBreakByProviderID(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing"}
	candidates := []providers.Provider{
		plumber(idC, nil),
		plumber(idA, nil),
		plumber(idB, nil),
	}

	for run := 0; run < 5; run++ {
		results := NewScorer().Rank(profile, candidates)
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if results[0].ProviderID != uuid.MustParse(idA) ||
			results[1].ProviderID != uuid.MustParse(idB) ||
			results[2].ProviderID != uuid.MustParse(idC) {
			t.Fatal("equal scores must order by provider id")
		}
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	results := NewScorer().Rank(CaseProfile{Category: "Plumbing"}, nil)
	if len(results) != 0 {
		t.Fatal("expected empty ranking for empty candidate set")
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	profile := CaseProfile{Category: "Plumbing", RequiredSkills: []string{"plumbing"}, Urgency: triage.UrgencyUrgent}
	best := plumber(idA, func(p *providers.Provider) {
		p.Specializations = []string{"Plumbing"}
		p.CurrentWorkload = 0
		p.Rating = ratingPtr(5)
		p.AvgResponseMinutes = 0
		p.EmergencyAvailable = true
	})

	results := NewScorer().Rank(profile, []providers.Provider{best})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score < 0 || results[0].Score > 100 {
		t.Fatalf("score out of bounds: %.2f", results[0].Score)
	}
}
