package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/client"
	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
)

var errUsage = errors.New("wrong command arguments")

const (
	earlyYesPrefix = "early_yes_"
	earlyNoPrefix  = "early_no_"
)

// parseAddArgs reads "/add <name...> <water_days> [nutrient_days]". The name may
// contain spaces; the trailing one or two integers are the intervals.
func parseAddArgs(args []string) (string, map[care.ActionKind]int, error) {
	var nums []int
	end := len(args)
	for end > 0 && len(nums) < 2 {
		n, err := strconv.Atoi(args[end-1])
		if err != nil {
			break
		}
		nums = append([]int{n}, nums...)
		end--
	}
	name := strings.TrimSpace(strings.Join(args[:end], " "))
	if name == "" || len(nums) == 0 {
		return "", nil, errUsage
	}

	intervals := map[care.ActionKind]int{care.ActionWater: nums[0]}
	if len(nums) == 2 {
		intervals[care.ActionNutrient] = nums[1]
	}
	return name, intervals, nil
}

func parseID(args []string, pos int) (int64, error) {
	if len(args) <= pos {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[pos], 10, 64)
	if err != nil || id <= 0 {
		return 0, errUsage
	}
	return id, nil
}

func earlyCallbackData(confirm bool, subjectID int64, kind care.ActionKind) string {
	prefix := earlyNoPrefix
	if confirm {
		prefix = earlyYesPrefix
	}
	return fmt.Sprintf("%s%d_%s", prefix, subjectID, kind)
}

// parseEarlyCallback decodes the data of an early-completion button. Telebot
// prefixes data of unique buttons with \f when no dedicated handler exists.
func parseEarlyCallback(data string) (confirm bool, subjectID int64, kind care.ActionKind, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	var rest string
	switch {
	case strings.HasPrefix(data, earlyYesPrefix):
		confirm, rest = true, strings.TrimPrefix(data, earlyYesPrefix)
	case strings.HasPrefix(data, earlyNoPrefix):
		rest = strings.TrimPrefix(data, earlyNoPrefix)
	default:
		return false, 0, "", false
	}

	idStr, kindStr, found := strings.Cut(rest, "_")
	if !found {
		return false, 0, "", false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return false, 0, "", false
	}
	k, err := care.ParseActionKind(kindStr)
	if err != nil {
		return false, 0, "", false
	}
	return confirm, id, k, true
}

// parseBroadcastArgs splits "<title> | <message>". Without a separator the whole
// text is the message.
func parseBroadcastArgs(payload string) (title, message string) {
	if t, m, found := strings.Cut(payload, "|"); found {
		return strings.TrimSpace(t), strings.TrimSpace(m)
	}
	return "", strings.TrimSpace(payload)
}

func kindVerb(kind care.ActionKind) string {
	if kind == care.ActionNutrient {
		return "Feeding"
	}
	return "Watering"
}

func formatSubjects(views []app.SubjectView) string {
	if len(views) == 0 {
		return "You have no subjects yet. Add one with /add <name> <water_days> [feed_days]."
	}
	var b strings.Builder
	b.WriteString("Your subjects:\n")
	for _, v := range views {
		fmt.Fprintf(&b, "\n#%d %s\n", v.Subject.ID, v.Subject.Name)
		for i, st := range v.States {
			fmt.Fprintf(&b, "  %s every %d d: %s\n", kindVerb(st.Kind), v.Cycles[i].IntervalDays, formatState(st))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatState(st care.State) string {
	if !st.HasDueDate {
		return "not done yet"
	}
	return fmt.Sprintf("%s, %d%% (due %s)", st.Label, st.Progress, st.NextDueDate.Format(notification.DayLayout))
}

func formatCompletion(name string, v client.CycleView) string {
	return fmt.Sprintf("%s done for %s. Next time: %s (%s).",
		kindVerb(v.Kind), name, v.Label, v.NextDueDate.Format(notification.DayLayout))
}

func formatInbox(items []*notification.Notification, unread int, loc *time.Location) string {
	if len(items) == 0 {
		return "No unread notifications."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Unread: %d\n", unread)
	for _, n := range items {
		fmt.Fprintf(&b, "\n%s %s\n%s\n/read %s\n", n.CreatedAt.In(loc).Format("Jan 2 15:04"), n.Title, n.Message, n.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSweep(s *app.SweepSummary) string {
	return fmt.Sprintf("Sweep at %s: created %d (overdue %d, due today %d, reminders %d), duplicates %d, failures %d.",
		s.At.Format(time.RFC3339), s.Created,
		s.ByCategory[notification.CategoryOverdue],
		s.ByCategory[notification.CategoryDueToday],
		s.ByCategory[notification.CategoryReminder],
		s.Deduplicated+s.Duplicates, len(s.Failures))
}
