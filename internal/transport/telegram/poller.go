package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/bot"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

const (
	platform     = "telegram"
	parseMode    = "Markdown"
	maxBackoff   = 30 * time.Second
	replyTimeout = 10 * time.Second
)

type MessageHandler interface {
	Handle(ctx context.Context, msg bot.InboundMessage) (string, bool)
}

// Poller feeds Telegram text messages to a MessageHandler and sends the
// replies back to the originating chat.
type Poller struct {
	client  *Client
	handler MessageHandler
	timeout time.Duration
	logger  *log.Logger
	offset  int64
	sleep   func(ctx context.Context, d time.Duration) bool
}

func NewPoller(client *Client, handler MessageHandler, pollTimeout time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Discard()
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Poller{
		client:  client,
		handler: handler,
		timeout: pollTimeout,
		logger:  logger.WithComponent(log.ComponentTelegram),
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Run polls until ctx is cancelled. Transient API errors are retried with
// exponential backoff; only cancellation ends the loop, with a nil error.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Telegram poller started", log.FieldOperation, log.OpStartup)
	failures := 0
	for {
		if ctx.Err() != nil {
			p.logger.InfoContext(ctx, "Telegram poller stopped", log.FieldOperation, log.OpShutdown)
			return nil
		}
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := backoff(failures)
			failures++
			p.logger.WarnContext(ctx, "Telegram poll failed", log.FieldError, err, "attempt", failures, "backoff", wait)
			p.sleep(ctx, wait)
			continue
		}
		failures = 0
	}
}

// PollOnce fetches one batch of updates and handles each in order. The
// offset advances past every update it sees, handled or not, so a poisoned
// update is never fetched again.
func (p *Poller) PollOnce(ctx context.Context) error {
	updates, err := p.client.GetUpdates(ctx, p.offset, p.timeout)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		p.handleUpdate(ctx, u)
	}
	return nil
}

// Offset is the next update id to request.
func (p *Poller) Offset() int64 { return p.offset }

func (p *Poller) handleUpdate(ctx context.Context, u Update) {
	m := u.Message
	if m == nil || m.Text == "" || (m.From != nil && m.From.IsBot) {
		return
	}

	chatID := strconv.FormatInt(m.Chat.ID, 10)
	senderID := chatID
	if m.From != nil {
		senderID = strconv.FormatInt(m.From.ID, 10)
	}
	reply, ok := p.handler.Handle(ctx, bot.InboundMessage{
		Text:       m.Text,
		SenderID:   senderID,
		SenderName: m.From.DisplayName(),
		ChatID:     chatID,
		IsGroup:    m.Chat.IsGroup(),
		Platform:   platform,
	})
	if !ok || reply == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	if err := p.reply(sendCtx, m.Chat.ID, reply); err != nil {
		p.logger.ErrorContext(ctx, "Failed to send Telegram reply",
			append(log.NewFields().WithSender(platform, senderID, chatID).ToSlice(), log.FieldError, err)...)
	}
}

// reply sends Markdown and falls back to plain text when Telegram rejects
// the entities, which happens with unbalanced '*' or '_' in descriptions.
func (p *Poller) reply(ctx context.Context, chatID int64, text string) error {
	err := p.client.SendMessage(ctx, chatID, text, parseMode)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
		return p.client.SendMessage(ctx, chatID, text, "")
	}
	return err
}
