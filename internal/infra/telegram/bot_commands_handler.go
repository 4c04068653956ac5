package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/domain/care"
	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/domain/owner"
)

const (
	msgInternalError = "Something went wrong. Please try again later."
	msgNotRegistered = "I don't know you yet. Send /start to register."
	msgNoSuchSubject = "No such subject. See /subjects for your list."
)

// RegisterBotCommands wires the owner-facing commands: registration, help,
// subject management and the inbox.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	subjectService *app.SubjectService,
	inboxService *app.InboxService,
	adminService *app.AdminService,
	loc *time.Location,
	baseLogger *logrus.Entry,
) {
	cmdLogger := baseLogger.WithField("handler_group", "owner_commands")

	b.Handle("/start", func(c telebot.Context) error {
		sender := c.Sender()
		logCtx := cmdLogger.WithField("command", "/start").WithField("sender_id", sender.ID)
		logCtx.Info("Processing /start command")

		o, created, err := subjectService.RegisterOwner(ctx, sender.ID, sender.FirstName, sender.LastName)
		if err != nil {
			logCtx.WithError(err).Error("Failed to register owner")
			return c.Send(msgInternalError)
		}
		if !o.IsActive {
			logCtx.WithField("owner_id", o.ID).Info("Inactive owner sent /start")
			return c.Send("Your account is inactive. Please contact the administrator.")
		}
		if created {
			logCtx.WithField("owner_id", o.ID).Info("New owner registered")
			return c.Send(fmt.Sprintf("Hi, %s! I will remind you when your plants need water or food. Add the first one with /add, see /help for details.", o.FirstName))
		}
		return c.Send(fmt.Sprintf("Welcome back, %s! Your subjects are in /subjects.", o.FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := cmdLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		var helpText strings.Builder
		helpText.WriteString("Commands:\n\n")
		helpText.WriteString("`/add <name> <water_days> [feed_days]`\n - Add a subject with its care intervals.\n\n")
		helpText.WriteString("`/subjects`\n - Show your subjects and what is due.\n\n")
		helpText.WriteString("`/water <id>`, `/feed <id>`\n - Record that you just did it.\n\n")
		helpText.WriteString("`/interval <id> <water|feed> <days>`\n - Change an interval.\n\n")
		helpText.WriteString("`/remove <id>`\n - Stop tracking a subject.\n\n")
		helpText.WriteString("`/inbox`, `/read <id>`\n - Unread notifications.")
		if adminService.IsAdmin(senderID) {
			helpText.WriteString("\n\nAdmin:\n\n")
			helpText.WriteString("`/broadcast <title> | <message>`\n - Notify every active owner.\n\n")
			helpText.WriteString("`/sweep`\n - Run the care sweep now.")
		}
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/subjects", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/subjects").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		views, err := subjectService.ListSubjects(ctx, o.ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list subjects")
			return c.Send(msgInternalError)
		}
		return c.Send(formatSubjects(views))
	})

	b.Handle("/add", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/add").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		name, intervals, err := parseAddArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /add <name> <water_days> [feed_days]\nExample: /add Monstera 7 30")
		}

		sub, err := subjectService.AddSubject(ctx, o.ID, name, intervals)
		switch {
		case err == nil:
			return c.Send(fmt.Sprintf("Added #%d %s. I'll remind you when it is due.", sub.ID, sub.Name))
		case errors.Is(err, care.ErrInvalidInterval):
			return c.Send("Intervals must be whole days greater than zero.")
		case errors.Is(err, app.ErrEmptySubjectName):
			return c.Send("The subject needs a name.")
		default:
			logCtx.WithError(err).Error("Failed to add subject")
			return c.Send(msgInternalError)
		}
	})

	b.Handle("/interval", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/interval").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		args := c.Args()
		usage := "Usage: /interval <id> <water|feed> <days>"
		subjectID, err := parseID(args, 0)
		if err != nil || len(args) != 3 {
			return c.Send(usage)
		}
		kind, err := care.ParseActionKind(args[1])
		if err != nil {
			return c.Send(usage)
		}
		days, err := parseID(args, 2)
		if err != nil {
			return c.Send("Intervals must be whole days greater than zero.")
		}

		cycle, err := subjectService.UpdateInterval(ctx, o.ID, subjectID, kind, int(days))
		switch {
		case err == nil:
			return c.Send(fmt.Sprintf("%s interval for #%d is now %d days.", kindVerb(kind), subjectID, cycle.IntervalDays))
		case errors.Is(err, care.ErrSubjectNotFound), errors.Is(err, app.ErrSubjectNotOwned):
			return c.Send(msgNoSuchSubject)
		case errors.Is(err, care.ErrCycleNotFound):
			return c.Send(fmt.Sprintf("Subject #%d has no %s schedule.", subjectID, strings.ToLower(kindVerb(kind))))
		default:
			logCtx.WithError(err).Error("Failed to update interval")
			return c.Send(msgInternalError)
		}
	})

	b.Handle("/remove", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/remove").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		subjectID, err := parseID(c.Args(), 0)
		if err != nil {
			return c.Send("Usage: /remove <id>")
		}

		sub, err := subjectService.DeactivateSubject(ctx, o.ID, subjectID)
		switch {
		case err == nil:
			return c.Send(fmt.Sprintf("Stopped tracking %s.", sub.Name))
		case errors.Is(err, app.ErrSubjectAlreadyInactive):
			return c.Send(fmt.Sprintf("%s is already removed.", sub.Name))
		case errors.Is(err, care.ErrSubjectNotFound), errors.Is(err, app.ErrSubjectNotOwned):
			return c.Send(msgNoSuchSubject)
		default:
			logCtx.WithError(err).Error("Failed to deactivate subject")
			return c.Send(msgInternalError)
		}
	})

	b.Handle("/inbox", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/inbox").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		items, err := inboxService.ListUnread(ctx, o.ID, 0)
		if err != nil {
			logCtx.WithError(err).Error("Failed to list unread notifications")
			return c.Send(msgInternalError)
		}
		unread, err := inboxService.UnreadCount(ctx, o.ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to count unread notifications")
			return c.Send(msgInternalError)
		}
		return c.Send(formatInbox(items, unread, loc))
	})

	b.Handle("/read", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/read").WithField("sender_id", c.Sender().ID)
		o, err := requireOwner(ctx, subjectService, c, logCtx)
		if o == nil {
			return err
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Usage: /read <notification id>")
		}

		err = inboxService.MarkRead(ctx, o.ID, args[0])
		switch {
		case err == nil:
			return c.Send("Marked as read.")
		case errors.Is(err, notification.ErrNotFound):
			return c.Send("No such unread notification.")
		default:
			logCtx.WithError(err).Error("Failed to mark notification read")
			return c.Send(msgInternalError)
		}
	})
}

// requireOwner resolves the sender to a registered owner. On a nil owner the
// caller returns the error as is; the user has already been answered.
func requireOwner(ctx context.Context, subjectService *app.SubjectService, c telebot.Context, logCtx *logrus.Entry) (*owner.Owner, error) {
	o, err := subjectService.OwnerByTelegramID(ctx, c.Sender().ID)
	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, app.ErrOwnerNotRegistered):
		return nil, c.Send(msgNotRegistered)
	default:
		logCtx.WithError(err).Error("Failed to look up owner")
		return nil, c.Send(msgInternalError)
	}
}
