package game

import (
	"time"

	"github.com/robalobadob/riddler/internal/riddles"
)

// Warning is the advisory level derived from the remaining time.
type Warning string

const (
	WarningNone     Warning = "none"
	WarningAdvisory Warning = "advisory" // under 3 minutes
	WarningUrgent   Warning = "urgent"   // under 1 minute
	WarningCritical Warning = "critical" // under 30 seconds
	WarningExpired  Warning = "expired"
)

const (
	normalLimit = 20 * time.Minute
	hardLimit   = 5 * time.Minute

	advisoryBelow = 180 * time.Second
	urgentBelow   = 60 * time.Second
	criticalBelow = 30 * time.Second
)

// LimitFor returns the time budget for tier. Easy has none.
func LimitFor(t riddles.Tier) (time.Duration, bool) {
	switch t {
	case riddles.Normal:
		return normalLimit, true
	case riddles.Hard:
		return hardLimit, true
	}
	return 0, false
}

// Remaining returns max(limit-(now-start), 0). ok is false when the tier
// has no limit.
func Remaining(start time.Time, t riddles.Tier, now time.Time) (time.Duration, bool) {
	limit, ok := LimitFor(t)
	if !ok {
		return 0, false
	}
	left := limit - now.Sub(start)
	if left < 0 {
		left = 0
	}
	return left, true
}

// WarningFor maps a remaining duration onto the fixed breakpoints.
func WarningFor(remaining time.Duration) Warning {
	switch {
	case remaining <= 0:
		return WarningExpired
	case remaining < criticalBelow:
		return WarningCritical
	case remaining < urgentBelow:
		return WarningUrgent
	case remaining < advisoryBelow:
		return WarningAdvisory
	}
	return WarningNone
}

// TimerStatus is the result of one timer observation.
type TimerStatus struct {
	Limited   bool          `json:"limited"`
	Remaining time.Duration `json:"-"`
	Seconds   int           `json:"remainingSeconds"`
	Warning   Warning       `json:"warning"`
	// ExpiredNow is true only on the observation that latched expiry.
	ExpiredNow bool `json:"expiredNow"`
}
