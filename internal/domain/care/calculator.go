package care

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"
)

const day = 24 * time.Hour

// Display labels for the D-day convention.
const (
	LabelOverdue = "Overdue"
	LabelToday   = "Today"
)

// Status is the due state of a cycle at a given instant.
type Status string

const (
	StatusUnknown  Status = "UNKNOWN" // no completion recorded yet
	StatusUpcoming Status = "UPCOMING"
	StatusDueToday Status = "DUE_TODAY"
	StatusOverdue  Status = "OVERDUE"
)

// NextDueDate returns lastActionDate + intervalDays. The bool is false when the
// last action date is unknown, in which case the cycle has no due date yet.
func NextDueDate(lastActionDate sql.NullTime, intervalDays int) (time.Time, bool, error) {
	if intervalDays <= 0 {
		return time.Time{}, false, fmt.Errorf("%w: got %d", ErrInvalidInterval, intervalDays)
	}
	if !lastActionDate.Valid {
		return time.Time{}, false, nil
	}
	return lastActionDate.Time.AddDate(0, 0, intervalDays), true, nil
}

// DaysRemaining is the ceiling of (nextDueDate - now) in whole days.
// Negative means overdue by that many days, zero means due today.
func DaysRemaining(nextDueDate, now time.Time) int {
	diff := nextDueDate.Sub(now)
	days := diff / day
	if diff%day > 0 {
		days++
	}
	return int(days)
}

// ProgressPercentage reports the remaining share of the cycle: 100 right after a
// completion, 0 at or after the due date. Interpolation is linear.
func ProgressPercentage(lastActionDate sql.NullTime, nextDueDate, now time.Time) int {
	if !lastActionDate.Valid {
		return 0
	}
	total := nextDueDate.Sub(lastActionDate.Time)
	if total <= 0 {
		return 0
	}
	remaining := nextDueDate.Sub(now)
	pct := int(math.Round(float64(remaining) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// DisplayLabel renders days remaining as "Overdue", "Today" or "D-<n>".
func DisplayLabel(daysRemaining int) string {
	switch {
	case daysRemaining < 0:
		return LabelOverdue
	case daysRemaining == 0:
		return LabelToday
	default:
		return "D-" + strconv.Itoa(daysRemaining)
	}
}

// Classify maps a days-remaining value onto a due status.
func Classify(daysRemaining int) Status {
	switch {
	case daysRemaining < 0:
		return StatusOverdue
	case daysRemaining == 0:
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}

// State is everything a caller needs to present or schedule one cycle.
type State struct {
	Kind          ActionKind
	HasDueDate    bool
	NextDueDate   time.Time
	DaysRemaining int
	Progress      int
	Label         string
	Status        Status
}

// OverdueDays is the number of whole days past the due date, zero when not overdue.
func (s State) OverdueDays() int {
	if s.Status != StatusOverdue {
		return 0
	}
	return -s.DaysRemaining
}

// Evaluate computes the state of a cycle at now.
func Evaluate(c *Cycle, now time.Time) (State, error) {
	st := State{Kind: c.Kind, Status: StatusUnknown}
	next, ok, err := NextDueDate(c.LastActionDate, c.IntervalDays)
	if err != nil {
		return st, fmt.Errorf("subject %d %s: %w", c.SubjectID, c.Kind, err)
	}
	if !ok {
		return st, nil
	}
	st.HasDueDate = true
	st.NextDueDate = next
	st.DaysRemaining = DaysRemaining(next, now)
	st.Progress = ProgressPercentage(c.LastActionDate, next, now)
	st.Label = DisplayLabel(st.DaysRemaining)
	st.Status = Classify(st.DaysRemaining)
	return st, nil
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CalendarDaysRemaining counts calendar days from now's day to the day of
// nextDueDate, both taken in now's location: 0 when due any time today, 1 when
// due tomorrow, negative once the due day has passed. DST shifts do not affect it.
func CalendarDaysRemaining(nextDueDate, now time.Time) int {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = nextDueDate.In(now.Location()).Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / day)
}

// IsTomorrow reports whether ts falls in [startOfTomorrow, startOfTomorrow + 1 day)
// relative to now's calendar.
func IsTomorrow(ts, now time.Time) bool {
	start := StartOfDay(now).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 1)
	return !ts.Before(start) && ts.Before(end)
}
