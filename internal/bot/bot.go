// Package bot turns inbound chat messages into replies: commands first, then
// classification and recording.
package bot

import (
	"context"
	"strings"

	"github.com/nanmax/wa-finance-bot-sub000/internal/commands"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
)

// ApologyReply is sent when a transaction could not be stored.
const ApologyReply = "❌ Maaf, terjadi kesalahan saat menyimpan transaksi. Silakan coba lagi."

// InboundMessage is a chat message normalized by a transport.
type InboundMessage struct {
	Text       string
	SenderID   string
	SenderName string
	ChatID     string
	IsGroup    bool
	Platform   string
}

func (m InboundMessage) sender() commands.Sender {
	return commands.Sender{ID: m.SenderID, Name: m.SenderName, ChatID: m.ChatID, IsGroup: m.IsGroup}
}

type (
	CommandRouter interface {
		Route(ctx context.Context, message string, sender commands.Sender) (string, bool)
	}

	Analyzer interface {
		Analyze(ctx context.Context, message string) *core.ClassificationResult
	}

	// Recorder stores transactions and reads them back for the running balance.
	Recorder interface {
		Record(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		All(ctx context.Context) ([]core.Transaction, error)
	}

	ChatPolicy interface {
		IsChatAllowed(chatID string, isGroup bool) bool
	}
)

type FinanceBot struct {
	router     CommandRouter
	classifier Analyzer
	recorder   Recorder
	engine     *report.Engine
	policy     ChatPolicy
	logger     *log.Logger
}

func NewFinanceBot(router CommandRouter, classifier Analyzer, recorder Recorder, engine *report.Engine, policy ChatPolicy, logger *log.Logger) *FinanceBot {
	if logger == nil {
		logger = log.Discard()
	}
	return &FinanceBot{
		router:     router,
		classifier: classifier,
		recorder:   recorder,
		engine:     engine,
		policy:     policy,
		logger:     logger.WithComponent(log.ComponentBot),
	}
}

// Handle processes one message. ok is false when nothing should be sent back,
// which is the case for ignored chats and non-financial chatter.
func (b *FinanceBot) Handle(ctx context.Context, msg InboundMessage) (reply string, ok bool) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", false
	}
	fields := log.NewFields().WithSender(msg.Platform, msg.SenderID, msg.ChatID).ToSlice()

	if b.policy != nil && !b.policy.IsChatAllowed(msg.ChatID, msg.IsGroup) {
		b.logger.DebugContext(ctx, "Ignoring message from chat that is not allowed", fields...)
		return "", false
	}

	sender := msg.sender()
	if reply, handled := b.router.Route(ctx, text, sender); handled {
		return reply, true
	}

	result := b.classifier.Analyze(ctx, msg.Text)
	if result == nil || !result.IsFinancial {
		b.logger.DebugContext(ctx, "Message is not a transaction", fields...)
		return "", false
	}

	tx := core.NewTransaction(*result, sender.Author(), msg.Text, b.engine.Now())
	saved, err := b.recorder.Record(ctx, tx)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to record transaction",
			append(fields, log.FieldOperation, log.OpCreate, log.FieldError, err)...)
		return ApologyReply, true
	}

	b.logger.InfoContext(ctx, "Transaction recorded",
		append(fields, log.NewFields().
			WithTransaction(saved.ID, string(saved.Type), saved.Amount, saved.Category, saved.Author).
			ToSlice()...)...)

	txs, err := b.recorder.All(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "Failed to load transactions for balance", log.FieldError, err)
		txs = nil
	}
	return report.FormatTransactionSaved(saved, b.engine.Summarize(txs)), true
}
