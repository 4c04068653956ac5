package notification

import (
	"context"
	"fmt"
	"time"

	"care_reminder_bot/internal/domain/care"
)

// DefaultWindow is the sliding window used for event-triggered notifications.
const DefaultWindow = time.Hour

// Mode selects how far back the guard looks for an earlier notification.
type Mode int

const (
	// ModeCalendarDay suppresses repeats created since the start of the current day.
	ModeCalendarDay Mode = iota
	// ModeSlidingWindow suppresses repeats created within the last window.
	ModeSlidingWindow
)

func (m Mode) String() string {
	switch m {
	case ModeCalendarDay:
		return "calendar_day"
	case ModeSlidingWindow:
		return "sliding_window"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Guard decides whether a candidate was already emitted for the same
// (kind, subject, recipient). It is a read-before-write pre-filter; storage
// constraints remain the authority when two writers race.
type Guard struct {
	finder Finder
	mode   Mode
	window time.Duration
	loc    *time.Location
}

// NewCalendarDayGuard builds the guard used by the sweep. Days are computed in loc.
func NewCalendarDayGuard(f Finder, loc *time.Location) *Guard {
	if loc == nil {
		loc = time.Local
	}
	return &Guard{finder: f, mode: ModeCalendarDay, loc: loc}
}

// NewSlidingWindowGuard builds the guard used for event-triggered notifications.
// A non-positive window falls back to DefaultWindow.
func NewSlidingWindowGuard(f Finder, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{finder: f, mode: ModeSlidingWindow, window: window}
}

func (g *Guard) Mode() Mode { return g.mode }

// Since is the lower bound on created_at that counts as a repeat at now.
func (g *Guard) Since(now time.Time) time.Time {
	if g.mode == ModeSlidingWindow {
		return now.Add(-g.window)
	}
	return care.StartOfDay(now.In(g.loc))
}

// Until is the exclusive upper bound on created_at that counts as a repeat at
// now. It is zero in sliding-window mode. In calendar-day mode it is the next
// midnight, so rows from later days never suppress a backfill for an earlier one.
func (g *Guard) Until(now time.Time) time.Time {
	if g.mode == ModeSlidingWindow {
		return time.Time{}
	}
	return care.StartOfDay(now.In(g.loc)).AddDate(0, 0, 1)
}

// Allow reports whether n may be emitted at now.
func (g *Guard) Allow(ctx context.Context, n *Notification, now time.Time) (bool, error) {
	existing, err := g.finder.FindRecentNotifications(ctx, n.Kind, n.SubjectID, n.RecipientID, g.Since(now))
	if err != nil {
		return false, fmt.Errorf("dedup lookup for %s/%d: %w", n.Kind, n.RecipientID, err)
	}
	until := g.Until(now)
	for _, e := range existing {
		if until.IsZero() || e.CreatedAt.Before(until) {
			return false, nil
		}
	}
	return true, nil
}
