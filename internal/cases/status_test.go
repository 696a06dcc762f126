package cases

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{StatusNew, StatusInReview, true},
		{StatusNew, StatusCancelled, true},
		{StatusNew, StatusScheduled, false},
		{StatusNew, StatusCompleted, false},
		{StatusInReview, StatusScheduled, true},
		{StatusInReview, StatusCancelled, true},
		{StatusInReview, StatusNew, false},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusInReview, false},
		{StatusOnHold, StatusInReview, true},
		{StatusOnHold, StatusCancelled, true},
		{StatusOnHold, StatusScheduled, false},
		{StatusOnHold, StatusNew, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusNew, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s -> %s: expected rejection", tt.from, tt.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusNew, StatusInReview, StatusScheduled, StatusOnHold} {
		if IsTerminal(status) {
			t.Errorf("%s must not be terminal", status)
		}
	}
	for _, status := range []string{StatusCompleted, StatusCancelled} {
		if !IsTerminal(status) {
			t.Errorf("%s must be terminal", status)
		}
	}
}

func TestCanHold(t *testing.T) {
	for _, status := range []string{StatusInReview, StatusScheduled} {
		if !CanHold(status) {
			t.Errorf("%s should allow hold", status)
		}
	}
	for _, status := range []string{StatusNew, StatusOnHold, StatusCompleted, StatusCancelled} {
		if CanHold(status) {
			t.Errorf("%s should not allow hold", status)
		}
	}
}
