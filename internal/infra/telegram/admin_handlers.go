package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"care_reminder_bot/internal/app"
)

// RegisterAdminHandlers registers handlers for admin commands.
// Authorization is checked here and again by the admin service.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	b.Handle("/broadcast", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/broadcast",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to use this command.")
		}

		// Expected format: /broadcast <title> | <message>
		title, message := parseBroadcastArgs(c.Message().Payload)
		if message == "" {
			return c.Send("Usage: /broadcast <title> | <message>")
		}

		res, err := adminService.Broadcast(ctx, c.Sender().ID, title, message)
		if err != nil {
			logWithError := handlerLogger.WithError(err)
			switch {
			case errors.Is(err, app.ErrAdminNotAuthorized):
				logWithError.Warn("Admin not authorized (service level)")
				return c.Send("Error: you are not allowed to use this command.")
			case len(res.Inserted) > 0:
				logWithError.Warn("Broadcast partially written")
				return c.Send(fmt.Sprintf("Broadcast partially sent: %d delivered, %d chunk(s) failed.", len(res.Inserted), len(res.Failures)))
			default:
				logWithError.Error("Failed to broadcast")
				return c.Send("Broadcast failed. Please try again later.")
			}
		}

		handlerLogger.WithField("inserted", len(res.Inserted)).Info("Broadcast sent")
		return c.Send(fmt.Sprintf("Broadcast sent to %d owner(s).", len(res.Inserted)))
	})

	b.Handle("/sweep", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sweep",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if !adminService.IsAdmin(c.Sender().ID) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to use this command.")
		}

		summary, err := adminService.TriggerSweep(ctx, c.Sender().ID)
		if summary == nil {
			handlerLogger.WithError(err).Error("Sweep did not run")
			return c.Send("Sweep failed. Please check the logs.")
		}
		if err != nil {
			handlerLogger.WithError(err).Warn("Sweep finished with errors")
			return c.Send(formatSweep(summary) + "\nThe sweep ended with errors, see the logs.")
		}
		return c.Send(formatSweep(summary))
	})
}
