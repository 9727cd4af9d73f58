// Package quiethours decides whether a candidate notification must be
// suppressed by the recipient's quiet-hours window. The evaluator is pure:
// the caller supplies the instant, nothing here reads a wall clock.
package quiethours

import (
	"time"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// Suppress reports whether a notification of the given priority, considered
// at the given instant, falls inside the user's quiet-hours window.
//
// Critical priority is never suppressed. A disabled or absent window never
// suppresses. The window is [start, end) in the user's local minutes-of-day;
// start > end wraps midnight, and start == end is empty.
func Suppress(window model.QuietWindow, priority model.NotificationPriority, instant time.Time) bool {
	if priority == model.PriorityCritical {
		return false
	}
	if !window.Enabled || window.Start == window.End {
		return false
	}

	minute := window.LocalMinuteOfDay(instant)
	if window.Start < window.End {
		return window.Start <= minute && minute < window.End
	}
	// Wraps midnight, e.g. 22:00 -> 06:00.
	return minute >= window.Start || minute < window.End
}
