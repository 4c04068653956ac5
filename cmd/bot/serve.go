package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"

	"care_reminder_bot/internal/client"
	"care_reminder_bot/internal/infra/logger"
	"care_reminder_bot/internal/infra/scheduler"
	"care_reminder_bot/internal/infra/telegram"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the scheduled care sweep",
		Long: `Run the scheduled care sweep and, when TELEGRAM_TOKEN is set, the Telegram
bot with push delivery. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, mainLogger, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()
	mainLogger.Info("Database connection established, schema up to date.")

	// The bot comes first so the sink has its deliverer before the first sweep.
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, tc telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if tc != nil && tc.Sender() != nil && tc.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": tc.Sender().ID, "chat_id": tc.Chat().ID, "text": tc.Text()})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			return err
		}

		pusher := telegram.NewPusher(telegram.NewTelebotAdapter(bot), c.owners, cfg.PushRatePerSec, cfg.AppBaseURL, logger.Component("pusher"))
		c.sink.SetDeliverer(pusher)
		pusher.Start(ctx)
		defer pusher.Stop()

		reconciler := client.NewReconciler(telegram.NewActionAPI(c.care), logger.Component("reconciler"))
		telegram.RegisterBotCommands(ctx, bot, c.subjects, c.inbox, c.admin, cfg.Location, botLogger)
		telegram.RegisterCareResponseHandlers(ctx, bot, c.subjects, c.care, reconciler, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, c.admin, botLogger)
		mainLogger.Info("Telegram handlers registered.")
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, running the scheduler only")
	}

	sweepScheduler := scheduler.NewSweepScheduler(c.sweep, logger.Component("scheduler"), cfg.CronSpecSweep, cfg.SweepTimeout, cfg.Location)
	if err := sweepScheduler.Start(); err != nil {
		return err
	}
	mainLogger.WithField("next_run", sweepScheduler.NextRun().Format(time.RFC3339)).Info("Application setup complete.")

	if bot != nil {
		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	<-ctx.Done()
	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	sweepScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
	return nil
}
