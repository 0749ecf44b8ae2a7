// Package expiry decides whether a product is still sellable based on its
// expiry date. All comparisons are by calendar day: the time-of-day and
// timezone offset of either side never change the outcome, and a product
// expiring today is still sellable.
package expiry

import (
	"strings"
	"time"
)

// DateLayout is the wire format for expiry dates.
const DateLayout = "2006-01-02"

// midnight strips the time-of-day component, pinning the date to UTC so
// that two instants on the same calendar day always compare equal.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Expired reports whether a product with the given expiry date may no
// longer be sold on today's date. A nil expiry date means the product
// never expires.
func Expired(expiryDate *time.Time, today time.Time) bool {
	if expiryDate == nil {
		return false
	}
	return midnight(*expiryDate).Before(midnight(today))
}

// DaysUntil returns the whole calendar days from today until the expiry
// date: negative if already expired, zero if it expires today.
func DaysUntil(expiryDate, today time.Time) int {
	return int(midnight(expiryDate).Sub(midnight(today)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD expiry date. Empty or malformed input
// returns ok=false; callers treat that as "no expiry" but should log it
// so bad data stays visible instead of being silently masked.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
