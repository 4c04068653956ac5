package notification

import (
	"fmt"
	"strings"

	"care_reminder_bot/internal/domain/care"
)

// TemplateContext is the per-kind payload for Render. Each variant carries exactly
// the fields its templates need.
type TemplateContext interface {
	templateContext()
}

// CycleContext feeds the due, overdue and reminder templates.
type CycleContext struct {
	SubjectName string
	Action      care.ActionKind
	IsOverdue   bool
	OverdueDays int
	IsReminder  bool
}

// SocialContext feeds like and comment templates.
type SocialContext struct {
	ActorName    string
	ContentKind  string // "post", "gallery", "article", ...
	ContentTitle string
}

type UploadContext struct {
	ContentKind string
	FileName    string
	Reason      string // failure reason, empty on success
}

type ModerationContext struct {
	ContentKind  string
	ContentTitle string
	Status       string // "approved", "rejected", "hidden", ...
	Reason       string
}

type BroadcastContext struct {
	Title   string
	Message string
}

type LevelUpContext struct {
	Level     int
	LevelName string
}

type FollowContext struct {
	ActorName string
}

func (CycleContext) templateContext()      {}
func (SocialContext) templateContext()     {}
func (UploadContext) templateContext()     {}
func (ModerationContext) templateContext() {}
func (BroadcastContext) templateContext()  {}
func (LevelUpContext) templateContext()    {}
func (FollowContext) templateContext()     {}

// Rendered is the user-facing text of a notification.
type Rendered struct {
	Title   string
	Message string
}

var generic = Rendered{Title: "Notification", Message: "You have a new notification."}

// Render maps a kind and its context to title and message. It is total: a nil or
// mismatched context falls back to generic phrasing for the kind, and an unknown
// kind falls back to the generic template.
func Render(kind Kind, tc TemplateContext) Rendered {
	if action, category, ok := kind.CycleParts(); ok {
		c, _ := tc.(CycleContext)
		return renderCycle(action, category, c)
	}

	switch kind {
	case KindLike:
		c, _ := tc.(SocialContext)
		return Rendered{Title: "New like", Message: socialLine(c, "liked")}
	case KindComment:
		c, _ := tc.(SocialContext)
		return Rendered{Title: "New comment", Message: socialLine(c, "commented on")}
	case KindUploadSuccess:
		c, _ := tc.(UploadContext)
		return Rendered{Title: "Upload complete", Message: uploadLine(c, "was uploaded successfully.")}
	case KindUploadFailure:
		c, _ := tc.(UploadContext)
		msg := uploadLine(c, "could not be uploaded.")
		if r := strings.TrimSpace(c.Reason); r != "" {
			msg = strings.TrimSuffix(msg, ".") + ": " + r
		}
		return Rendered{Title: "Upload failed", Message: msg}
	case KindModerationStatus:
		c, _ := tc.(ModerationContext)
		return Rendered{Title: "Moderation update", Message: moderationLine(c)}
	case KindBroadcast:
		c, _ := tc.(BroadcastContext)
		r := Rendered{Title: "Announcement", Message: "You have a new announcement."}
		if t := strings.TrimSpace(c.Title); t != "" {
			r.Title = t
		}
		if m := strings.TrimSpace(c.Message); m != "" {
			r.Message = m
		}
		return r
	case KindLevelUp:
		c, _ := tc.(LevelUpContext)
		msg := "You reached a new level."
		if c.Level > 0 {
			msg = fmt.Sprintf("You reached level %d.", c.Level)
			if n := strings.TrimSpace(c.LevelName); n != "" {
				msg = fmt.Sprintf("You reached level %d (%s).", c.Level, n)
			}
		}
		return Rendered{Title: "Level up!", Message: msg}
	case KindNewFollower:
		c, _ := tc.(FollowContext)
		return Rendered{Title: "New follower", Message: orDefault(c.ActorName, "Someone") + " started following you."}
	default:
		return generic
	}
}

type actionWords struct {
	noun string // "Watering"
	verb string // "watering" as in "needs watering"
}

func wordsFor(action care.ActionKind) actionWords {
	switch action {
	case care.ActionWater:
		return actionWords{noun: "Watering", verb: "watering"}
	case care.ActionNutrient:
		return actionWords{noun: "Fertilizing", verb: "fertilizing"}
	default:
		return actionWords{noun: "Care", verb: "care"}
	}
}

func renderCycle(action care.ActionKind, category Category, c CycleContext) Rendered {
	w := wordsFor(action)
	name := orDefault(c.SubjectName, "Your plant")

	if category == CategoryReminder || c.IsReminder {
		return Rendered{
			Title:   w.noun + " tomorrow",
			Message: fmt.Sprintf("%s will need %s tomorrow.", name, w.verb),
		}
	}
	if category == CategoryOverdue || c.IsOverdue {
		msg := fmt.Sprintf("%s is overdue for %s.", name, w.verb)
		if c.OverdueDays > 0 {
			msg = fmt.Sprintf("%s is %s overdue for %s.", name, pluralDays(c.OverdueDays), w.verb)
		}
		return Rendered{Title: w.noun + " overdue", Message: msg}
	}
	return Rendered{
		Title:   w.noun + " due today",
		Message: fmt.Sprintf("%s needs %s today.", name, w.verb),
	}
}

func socialLine(c SocialContext, verb string) string {
	actor := orDefault(c.ActorName, "Someone")
	content := orDefault(c.ContentKind, "post")
	if t := strings.TrimSpace(c.ContentTitle); t != "" {
		return fmt.Sprintf("%s %s your %s %q.", actor, verb, content, t)
	}
	return fmt.Sprintf("%s %s your %s.", actor, verb, content)
}

func uploadLine(c UploadContext, tail string) string {
	content := orDefault(c.ContentKind, "upload")
	if f := strings.TrimSpace(c.FileName); f != "" {
		return fmt.Sprintf("Your %s %q %s", content, f, tail)
	}
	return fmt.Sprintf("Your %s %s", content, tail)
}

func moderationLine(c ModerationContext) string {
	content := orDefault(c.ContentKind, "content")
	subject := "Your " + content
	if t := strings.TrimSpace(c.ContentTitle); t != "" {
		subject = fmt.Sprintf("Your %s %q", content, t)
	}
	status := strings.TrimSpace(c.Status)
	if status == "" {
		return subject + " has a new moderation status."
	}
	msg := fmt.Sprintf("%s is now %s.", subject, strings.ToLower(status))
	if r := strings.TrimSpace(c.Reason); r != "" {
		msg += " Reason: " + r
	}
	return msg
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
