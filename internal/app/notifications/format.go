package notifications

import (
	"time"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

// formatDate renders a date-only value. The calendar date is taken as stored,
// without converting between time zones.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "TBD"
	}
	return t.Format(DateLayout)
}

func displayName(name, email string) string {
	if n := domain.NormalizeHumanName(name); n != "" {
		return n
	}
	return email
}
