package quiethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// utcAt builds a UTC instant at the given hour and minute.
func utcAt(hour, minute int) time.Time {
	return time.Date(2025, 3, 14, hour, minute, 0, 0, time.UTC)
}

func window(start, end int) model.QuietWindow {
	return model.QuietWindow{Enabled: true, Start: start, End: end}
}

func TestSuppressSameDayWindow(t *testing.T) {
	w := window(9*60, 17*60) // 09:00 -> 17:00

	tests := []struct {
		name     string
		instant  time.Time
		suppress bool
	}{
		{"before start", utcAt(8, 59), false},
		{"at start", utcAt(9, 0), true},
		{"inside", utcAt(12, 0), true},
		{"last minute", utcAt(16, 59), true},
		{"at end is exclusive", utcAt(17, 0), false},
		{"after end", utcAt(23, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.suppress, Suppress(w, model.PriorityNormal, tt.instant))
		})
	}
}

func TestSuppressWrapAroundWindow(t *testing.T) {
	w := window(22*60, 6*60) // 22:00 -> 06:00

	tests := []struct {
		name     string
		instant  time.Time
		suppress bool
	}{
		{"midnight", utcAt(0, 0), true},
		{"late evening", utcAt(23, 30), true},
		{"at start", utcAt(22, 0), true},
		{"just before end", utcAt(5, 59), true},
		{"at end is exclusive", utcAt(6, 0), false},
		{"midday", utcAt(12, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.suppress, Suppress(w, model.PriorityNormal, tt.instant))
		})
	}
}

func TestSuppressEmptyWindowNeverSuppresses(t *testing.T) {
	w := window(8*60, 8*60)
	for hour := 0; hour < 24; hour++ {
		assert.False(t, Suppress(w, model.PriorityNormal, utcAt(hour, 0)),
			"start==end must be empty, not suppress-all-day (hour %d)", hour)
	}
}

func TestSuppressDisabledWindow(t *testing.T) {
	w := model.QuietWindow{Enabled: false, Start: 0, End: 1439}
	assert.False(t, Suppress(w, model.PriorityNormal, utcAt(3, 0)))
}

func TestSuppressCriticalNeverSuppressed(t *testing.T) {
	windows := []model.QuietWindow{
		window(0, 1439),
		window(22*60, 6*60),
		window(9*60, 17*60),
	}
	for _, w := range windows {
		for hour := 0; hour < 24; hour++ {
			assert.False(t, Suppress(w, model.PriorityCritical, utcAt(hour, 30)))
		}
	}
}

func TestSuppressHonorsUserOffset(t *testing.T) {
	// 22:00 -> 06:00 quiet hours for a user at UTC-5.
	w := model.QuietWindow{Enabled: true, Start: 22 * 60, End: 6 * 60, OffsetMinutes: -5 * 60}

	// 03:00 UTC is 22:00 local: suppressed.
	assert.True(t, Suppress(w, model.PriorityNormal, utcAt(3, 0)))
	// 12:00 UTC is 07:00 local: not suppressed.
	assert.False(t, Suppress(w, model.PriorityNormal, utcAt(12, 0)))
}
