package ledger

import (
	"fmt"
	"strconv"
	"time"
)

// Stash expiry limits.
const (
	// DefaultExpiry is how long stashed payloads are kept by default.
	DefaultExpiry = 48 * time.Hour

	// MinExpiry is the shortest accepted expiry.
	MinExpiry = time.Hour

	// MaxExpiry is the longest accepted expiry (30 days).
	MaxExpiry = 30 * 24 * time.Hour

	// minutesPerHour is used for duration formatting calculations.
	minutesPerHour = 60

	// hoursPerDay is used for duration formatting calculations.
	hoursPerDay = 24
)

// ErrInvalidExpiry is returned for expiries outside [MinExpiry, MaxExpiry].
var ErrInvalidExpiry = fmt.Errorf("expiry must be between %s and %s",
	FormatDuration(MinExpiry), FormatDuration(MaxExpiry))

// ValidateExpiry checks d against the accepted range.
func ValidateExpiry(d time.Duration) error {
	if d < MinExpiry || d > MaxExpiry {
		return fmt.Errorf("%w: got %s", ErrInvalidExpiry, d)
	}
	return nil
}

// ParseExpiry parses an expiry in either form:
// - Integer hours: "48".
// - Duration string: "36h", "90m", "1h30m".
func ParseExpiry(s string) (time.Duration, error) {
	if hours, err := strconv.Atoi(s); err == nil {
		d := time.Duration(hours) * time.Hour
		return d, ValidateExpiry(d)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry format: %w", err)
	}
	return d, ValidateExpiry(d)
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "45s", "30m", "1h30m", "2d4h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}
