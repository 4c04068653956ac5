package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/client"
	"care_reminder_bot/internal/domain/care"
)

// careActionAPI lets the reconciler call the completion write path in process.
type careActionAPI struct {
	care *app.CareService
}

// NewActionAPI adapts the care service to the reconciler's server endpoint.
func NewActionAPI(careService *app.CareService) client.ActionAPI {
	return careActionAPI{care: careService}
}

func (a careActionAPI) CompleteAction(ctx context.Context, subjectID int64, kind care.ActionKind) (client.Confirmed, error) {
	c, err := a.care.CompleteAction(ctx, subjectID, kind)
	if err != nil {
		return client.Confirmed{}, err
	}
	return client.Confirmed{LastActionDate: c.LastActionDate, NextDueDate: c.NextDueDate}, nil
}

type careResponder struct {
	subjects   *app.SubjectService
	care       *app.CareService
	reconciler *client.Reconciler
}

// RegisterCareResponseHandlers wires /water and /feed plus the early-completion
// confirmation buttons.
func RegisterCareResponseHandlers(
	ctx context.Context,
	b *telebot.Bot,
	subjectService *app.SubjectService,
	careService *app.CareService,
	reconciler *client.Reconciler,
	baseLogger *logrus.Entry,
) {
	h := &careResponder{subjects: subjectService, care: careService, reconciler: reconciler}
	careLogger := baseLogger.WithField("handler_group", "care_actions")

	completeCommand := func(command string, kind care.ActionKind) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := careLogger.WithFields(logrus.Fields{"command": command, "sender_id": c.Sender().ID})
			o, err := requireOwner(ctx, subjectService, c, logCtx)
			if o == nil {
				return err
			}
			subjectID, err := parseID(c.Args(), 0)
			if err != nil {
				return c.Send(fmt.Sprintf("Usage: %s <id>", command))
			}

			text, markup := h.complete(ctx, o.ID, subjectID, kind, false, logCtx)
			if markup != nil {
				return c.Send(text, markup)
			}
			return c.Send(text)
		}
	}
	b.Handle("/water", completeCommand("/water", care.ActionWater))
	b.Handle("/feed", completeCommand("/feed", care.ActionNutrient))

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		logCtx := careLogger.WithFields(logrus.Fields{"callback": strings.TrimPrefix(data, "\f"), "sender_id": c.Sender().ID})

		confirm, subjectID, kind, ok := parseEarlyCallback(data)
		if !ok {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %q", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}
		if !confirm {
			logCtx.Info("Early completion declined")
			if err := c.Edit("Okay, nothing recorded."); err != nil {
				logCtx.WithError(err).Warn("Failed to edit message after decline")
			}
			return c.Respond()
		}

		o, err := subjectService.OwnerByTelegramID(ctx, c.Sender().ID)
		if err != nil {
			logCtx.WithError(err).Warn("Callback from unknown owner")
			return c.Respond(&telebot.CallbackResponse{Text: msgNotRegistered})
		}

		text, _ := h.complete(ctx, o.ID, subjectID, kind, true, logCtx)
		if err := c.Edit(text); err != nil {
			logCtx.WithError(err).Warn("Failed to edit message after completion")
			if sendErr := c.Send(text); sendErr != nil {
				c.Bot().OnError(sendErr, c)
			}
		}
		return c.Respond()
	})
}

// complete runs one completion through the reconciler and returns the reply. The
// markup is set when the user has to confirm an early completion.
func (h *careResponder) complete(ctx context.Context, ownerID, subjectID int64, kind care.ActionKind, confirmEarly bool, logCtx *logrus.Entry) (string, *telebot.ReplyMarkup) {
	logCtx = logCtx.WithFields(logrus.Fields{"owner_id": ownerID, "subject_id": subjectID, "kind": kind})

	sub, err := h.subjects.OwnedSubject(ctx, ownerID, subjectID)
	switch {
	case err == nil:
	case errors.Is(err, care.ErrSubjectNotFound), errors.Is(err, app.ErrSubjectNotOwned):
		return msgNoSuchSubject, nil
	default:
		logCtx.WithError(err).Error("Failed to load subject")
		return msgInternalError, nil
	}
	if !sub.IsActive {
		return fmt.Sprintf("%s was removed.", sub.Name), nil
	}

	cycle, state, err := h.care.CycleState(ctx, subjectID, kind)
	switch {
	case err == nil:
	case errors.Is(err, care.ErrCycleNotFound):
		return fmt.Sprintf("%s has no %s schedule.", sub.Name, strings.ToLower(kindVerb(kind))), nil
	default:
		logCtx.WithError(err).Error("Failed to load cycle state")
		return msgInternalError, nil
	}
	// A refused refresh means an action on this cycle is already pending.
	h.reconciler.Track(client.ViewFromState(subjectID, cycle, state))

	v, err := h.reconciler.Complete(ctx, subjectID, kind, confirmEarly)
	switch {
	case err == nil:
		return formatCompletion(sub.Name, v), nil
	case errors.Is(err, client.ErrActionNotYetDue):
		markup := &telebot.ReplyMarkup{}
		yes := markup.Data("Yes, done", earlyCallbackData(true, subjectID, kind))
		no := markup.Data("Not now", earlyCallbackData(false, subjectID, kind))
		markup.Inline(markup.Row(yes, no))
		return fmt.Sprintf("%s for %s is not due yet (%s). Record it anyway?", kindVerb(kind), sub.Name, v.Label), markup
	case errors.Is(err, client.ErrActionInFlight):
		return "Already recording that, one moment.", nil
	default:
		logCtx.WithError(err).Error("Completion failed")
		return "Could not record it, nothing was changed. Please try again.", nil
	}
}
