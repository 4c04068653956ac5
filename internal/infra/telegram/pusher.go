package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"

	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/domain/owner"
	domainTelegram "care_reminder_bot/internal/domain/telegram"
)

const defaultPushQueueSize = 1024

// Pusher forwards stored notifications to the owners' Telegram chats. It
// implements app.Deliverer: Deliver only enqueues, a single worker sends at a
// bounded rate. A full queue drops the push; the notification itself is already
// stored and shows up in the inbox.
type Pusher struct {
	client  domainTelegram.Client
	owners  owner.Repository
	limiter *rate.Limiter
	baseURL string
	queue   chan *notification.Notification
	log     *logrus.Entry

	mu    sync.Mutex
	chats map[int64]int64 // owner ID -> Telegram chat ID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPusher(client domainTelegram.Client, owners owner.Repository, ratePerSec int, baseURL string, log *logrus.Entry) *Pusher {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Pusher{
		client:  client,
		owners:  owners,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		baseURL: strings.TrimRight(baseURL, "/"),
		queue:   make(chan *notification.Notification, defaultPushQueueSize),
		log:     log,
		chats:   make(map[int64]int64),
	}
}

// Deliver enqueues the batch without blocking.
func (p *Pusher) Deliver(ctx context.Context, batch []*notification.Notification) {
	dropped := 0
	for _, n := range batch {
		select {
		case p.queue <- n:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		p.log.WithField("dropped", dropped).Warn("Push queue full, notifications left for the inbox only")
	}
}

// Start runs the send worker until ctx is cancelled or Stop is called.
func (p *Pusher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
	p.log.Info("Telegram pusher started.")
}

// Stop halts the worker. Queued pushes that were not sent yet are discarded.
func (p *Pusher) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.log.WithField("discarded", len(p.queue)).Info("Telegram pusher stopped.")
}

func (p *Pusher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.queue:
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			if err := p.push(ctx, n); err != nil {
				p.log.WithError(err).WithFields(logrus.Fields{
					"notification_id": n.ID,
					"recipient_id":    n.RecipientID,
				}).Warn("Failed to push notification")
			}
		}
	}
}

func (p *Pusher) push(ctx context.Context, n *notification.Notification) error {
	chatID, err := p.chatID(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	err = p.client.SendMessage(chatID, p.format(n), &telebot.SendOptions{DisableWebPagePreview: true})
	if err != nil && IsUnreachable(err) {
		p.forget(n.RecipientID)
	}
	return err
}

func (p *Pusher) chatID(ctx context.Context, ownerID int64) (int64, error) {
	p.mu.Lock()
	id, ok := p.chats[ownerID]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	o, err := p.owners.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, owner.ErrNotFound) {
			return 0, fmt.Errorf("recipient %d has no owner record: %w", ownerID, err)
		}
		return 0, fmt.Errorf("failed to resolve chat for recipient %d: %w", ownerID, err)
	}

	p.mu.Lock()
	p.chats[ownerID] = o.TelegramID
	p.mu.Unlock()
	return o.TelegramID, nil
}

func (p *Pusher) forget(ownerID int64) {
	p.mu.Lock()
	delete(p.chats, ownerID)
	p.mu.Unlock()
}

func (p *Pusher) format(n *notification.Notification) string {
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n")
	b.WriteString(n.Message)
	if p.baseURL != "" && n.Link != "" {
		b.WriteString("\n")
		b.WriteString(p.baseURL)
		b.WriteString(n.Link)
	}
	return b.String()
}
