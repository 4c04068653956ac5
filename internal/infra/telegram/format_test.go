package telegram

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/client"
	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
)

func TestParseAddArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantName  string
		intervals map[care.ActionKind]int
		wantErr   bool
	}{
		{"water only", []string{"Monstera", "7"}, "Monstera", map[care.ActionKind]int{care.ActionWater: 7}, false},
		{"water and feed", []string{"Big", "Fern", "3", "30"}, "Big Fern", map[care.ActionKind]int{care.ActionWater: 3, care.ActionNutrient: 30}, false},
		{"numeric name part", []string{"Cactus", "2", "14", "60"}, "Cactus 2", map[care.ActionKind]int{care.ActionWater: 14, care.ActionNutrient: 60}, false},
		{"zero passes through", []string{"Fern", "0"}, "Fern", map[care.ActionKind]int{care.ActionWater: 0}, false},
		{"no interval", []string{"Fern"}, "", nil, true},
		{"no name", []string{"3", "30"}, "", nil, true},
		{"empty", nil, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, intervals, err := parseAddArgs(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.intervals, intervals)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID([]string{"12"}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, args := range [][]string{nil, {"x"}, {"-3"}, {"0"}} {
		_, err := parseID(args, 0)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestEarlyCallbackRoundTrip(t *testing.T) {
	for _, confirm := range []bool{true, false} {
		data := earlyCallbackData(confirm, 42, care.ActionNutrient)

		for _, raw := range []string{data, "\f" + data} {
			gotConfirm, id, kind, ok := parseEarlyCallback(raw)
			require.True(t, ok, raw)
			assert.Equal(t, confirm, gotConfirm)
			assert.Equal(t, int64(42), id)
			assert.Equal(t, care.ActionNutrient, kind)
		}
	}
	assert.Equal(t, "early_yes_42_WATER", earlyCallbackData(true, 42, care.ActionWater))
}

func TestParseEarlyCallback_Rejects(t *testing.T) {
	for _, data := range []string{"", "ans_yes_1", "early_yes_", "early_yes_x_WATER", "early_no_1_PRUNE", "early_yes_1"} {
		_, _, _, ok := parseEarlyCallback(data)
		assert.False(t, ok, data)
	}
}

func TestParseBroadcastArgs(t *testing.T) {
	title, msg := parseBroadcastArgs(" Maintenance | Back at 10:00 ")
	assert.Equal(t, "Maintenance", title)
	assert.Equal(t, "Back at 10:00", msg)

	title, msg = parseBroadcastArgs("just a message")
	assert.Empty(t, title)
	assert.Equal(t, "just a message", msg)
}

func TestFormatSubjects(t *testing.T) {
	now := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	water := &care.Cycle{Kind: care.ActionWater, IntervalDays: 7, LastActionDate: sql.NullTime{Time: now.AddDate(0, 0, -5), Valid: true}}
	feed := &care.Cycle{Kind: care.ActionNutrient, IntervalDays: 30}
	ws, err := care.Evaluate(water, now)
	require.NoError(t, err)
	fs, err := care.Evaluate(feed, now)
	require.NoError(t, err)

	got := formatSubjects([]app.SubjectView{{
		Subject: &care.Subject{ID: 3, Name: "Monstera"},
		Cycles:  []*care.Cycle{water, feed},
		States:  []care.State{ws, fs},
	}})
	assert.Equal(t, "Your subjects:\n\n#3 Monstera\n  Watering every 7 d: D-2, 29% (due 2025-04-12)\n  Feeding every 30 d: not done yet", got)

	assert.Contains(t, formatSubjects(nil), "/add")
}

func TestFormatCompletion(t *testing.T) {
	v := client.CycleView{Kind: care.ActionWater, Label: "D-7", NextDueDate: time.Date(2025, 4, 17, 9, 0, 0, 0, time.UTC)}
	assert.Equal(t, "Watering done for Fern. Next time: D-7 (2025-04-17).", formatCompletion("Fern", v))
}

func TestFormatInbox(t *testing.T) {
	assert.Equal(t, "No unread notifications.", formatInbox(nil, 0, time.UTC))

	got := formatInbox([]*notification.Notification{{
		ID:        "abc",
		Title:     "Time to water",
		Message:   "Fern needs water today.",
		CreatedAt: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),
	}}, 3, time.UTC)
	assert.Equal(t, "Unread: 3\n\nApr 10 09:00 Time to water\nFern needs water today.\n/read abc", got)
}

func TestFormatSweep(t *testing.T) {
	s := &app.SweepSummary{
		At:      time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC),
		Created: 3,
		ByCategory: map[notification.Category]int{
			notification.CategoryOverdue:  1,
			notification.CategoryDueToday: 1,
			notification.CategoryReminder: 1,
		},
		Deduplicated: 2,
		Duplicates:   1,
	}
	assert.Equal(t, "Sweep at 2025-04-10T09:00:00Z: created 3 (overdue 1, due today 1, reminders 1), duplicates 3, failures 0.", formatSweep(s))
}
