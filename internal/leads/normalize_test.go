package leads

import (
	"testing"

	"github.com/frametech/leads-dashboard/internal/models"
)

func str(s string) *string { return &s }

func TestIsFilled(t *testing.T) {
	tests := []struct {
		name string
		in   *string
		want bool
	}{
		{"nil", nil, false},
		{"empty", str(""), false},
		{"blank", str("   "), false},
		{"sentinel title", str("Optional"), false},
		{"sentinel upper", str("OPTIONAL"), false},
		{"sentinel padded", str("  optional "), false},
		{"value", str("yes"), true},
		{"padded value", str(" yes "), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFilled(tt.in); got != tt.want {
				t.Errorf("IsFilled(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   *string
		want string
	}{
		{nil, ""},
		{str(""), ""},
		{str("optional"), ""},
		{str(" OPTIONAL "), ""},
		{str("hot"), "Hot"},
		{str("  WARM "), "Warm"},
		{str("book a DEMO"), "Book a demo"},
		{str("élan"), "Élan"},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafe(t *testing.T) {
	if got := Safe(nil); got != "N/A" {
		t.Errorf("Safe(nil) = %q", got)
	}
	if got := Safe(str("")); got != "N/A" {
		t.Errorf("Safe(\"\") = %q", got)
	}
	if got := Safe(str("x")); got != "x" {
		t.Errorf("Safe(x) = %q", got)
	}
	// only nil and "" are replaced
	if got := Safe(str("optional")); got != "optional" {
		t.Errorf("Safe(optional) = %q", got)
	}
}

func TestHasAppointment(t *testing.T) {
	withLink := models.Lead{AppointmentDetails: str(""), CalendarLink: str("https://x")}
	if !HasAppointment(withLink) {
		t.Error("expected calendar link to count as appointment")
	}

	none := models.Lead{AppointmentDetails: str("optional"), CalendarLink: str("  ")}
	if HasAppointment(none) {
		t.Error("expected blank/optional fields not to count")
	}

	details := models.Lead{AppointmentDetails: str("Tuesday 3pm")}
	if !HasAppointment(details) {
		t.Error("expected appointment details to count")
	}
}

func TestHasAppointmentDetails(t *testing.T) {
	if HasAppointmentDetails(models.Lead{}) {
		t.Error("nil details should be false")
	}
	if HasAppointmentDetails(models.Lead{AppointmentDetails: str("")}) {
		t.Error("empty details should be false")
	}
	if !HasAppointmentDetails(models.Lead{AppointmentDetails: str("optional")}) {
		t.Error("call log treats any non-empty text as an appointment")
	}
}

func TestBadgeClassUsesDisplayText(t *testing.T) {
	if got := BadgeClass(TitleCase(str("HOT"))); got != "badge-hot" {
		t.Errorf("got %q", got)
	}
	if got := BadgeClass("hot"); got != "badge-none" {
		t.Errorf("raw lowercase value should not match a badge, got %q", got)
	}
	if got := BadgeClass(""); got != "badge-none" {
		t.Errorf("got %q", got)
	}
}
