// Package leads holds the pure logic behind the dashboard: field
// normalization, warmth bucketing and KPI aggregation.
package leads

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/frametech/leads-dashboard/internal/models"
)

// Sentinel the voice agent writes when a field was not provided.
const optionalSentinel = "optional"

// NotAvailable is shown for empty cells in the raw tables.
const NotAvailable = "N/A"

// IsFilled reports whether v carries a real value: non-nil, not blank and
// not the "optional" sentinel.
func IsFilled(v *string) bool {
	if v == nil {
		return false
	}
	t := strings.TrimSpace(*v)
	return t != "" && strings.ToLower(t) != optionalSentinel
}

// TitleCase formats a value for display ("HOT " -> "Hot").
// Missing values and the sentinel become "".
func TitleCase(v *string) string {
	if v == nil || *v == "" {
		return ""
	}
	t := strings.ToLower(strings.TrimSpace(*v))
	if t == optionalSentinel || t == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[size:]
}

// Safe returns v unchanged, or "N/A" when it is nil or empty.
// Whitespace and "optional" are passed through as-is.
func Safe(v *string) string {
	if v == nil || *v == "" {
		return NotAvailable
	}
	return *v
}

// HasAppointment reports whether a calendar link or appointment details
// were captured for the lead.
func HasAppointment(l models.Lead) bool {
	return IsFilled(l.CalendarLink) || IsFilled(l.AppointmentDetails)
}

// BadgeClass picks the badge colour for a title-cased warmth label.
// It compares display text, not the raw column value.
func BadgeClass(display string) string {
	switch display {
	case "Hot":
		return "badge-hot"
	case "Warm":
		return "badge-warm"
	case "Cold":
		return "badge-cold"
	default:
		return "badge-none"
	}
}

// HasAppointmentDetails is the call log's looser check: any non-empty
// appointment_details counts, the "optional" sentinel included.
func HasAppointmentDetails(l models.Lead) bool {
	return l.AppointmentDetails != nil && *l.AppointmentDetails != ""
}
