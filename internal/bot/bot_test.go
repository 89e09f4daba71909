package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanmax/wa-finance-bot-sub000/internal/classifier"
	"github.com/nanmax/wa-finance-bot-sub000/internal/commands"
	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
	"github.com/nanmax/wa-finance-bot-sub000/internal/services"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage/memory"
)

type mockAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, message string) *core.ClassificationResult
	calls       int
}

func (m *mockAnalyzer) Analyze(ctx context.Context, message string) *core.ClassificationResult {
	m.calls++
	return m.AnalyzeFunc(ctx, message)
}

type mockRecorder struct {
	RecordFunc func(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	AllFunc    func(ctx context.Context) ([]core.Transaction, error)
}

func (m *mockRecorder) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return m.RecordFunc(ctx, tx)
}

func (m *mockRecorder) All(ctx context.Context) ([]core.Transaction, error) {
	return m.AllFunc(ctx)
}

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fixture struct {
	bot      *FinanceBot
	svc      *services.TransactionService
	settings *config.SettingsStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	settings := config.NewMemorySettings(config.DefaultSettings())
	engine := report.NewEngine(time.UTC, func() time.Time { return now })
	svc := services.NewTransactionService(memory.NewStore())
	router := commands.NewRouter(svc, settings, engine, nil, commands.Options{}, nil)
	pattern := classifier.NewPatternClassifier(classifier.DefaultRules())
	mc := classifier.NewMessageClassifier(nil, pattern, nil)
	return fixture{
		bot:      NewFinanceBot(router, mc, svc, engine, settings, nil),
		svc:      svc,
		settings: settings,
	}
}

func TestHandle_RecordsTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, ok := f.bot.Handle(ctx, InboundMessage{Text: "jajan 50000", SenderID: "628111", SenderName: "Budi", Platform: "whatsapp"})
	require.True(t, ok)
	assert.Contains(t, reply, "Transaksi tercatat")
	assert.Contains(t, reply, "Pengeluaran: Rp 50.000")
	assert.Contains(t, reply, "Kategori: Food & Beverage")
	assert.Contains(t, reply, "Oleh: Budi")
	assert.Contains(t, reply, "Saldo saat ini: -Rp 50.000")

	all, err := f.svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Budi", all[0].Author)
	assert.Equal(t, "jajan 50000", all[0].OriginalMessage)
	assert.True(t, now.Equal(all[0].Timestamp))
}

func TestHandle_StoresRawMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raw := "  beli 2 kopi 30000 \n"

	_, ok := f.bot.Handle(ctx, InboundMessage{Text: raw, SenderID: "628111"})
	require.True(t, ok)

	all, err := f.svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, raw, all[0].OriginalMessage)
	assert.Equal(t, raw, all[0].Description)
	assert.Equal(t, int64(30000), all[0].Amount)
	assert.Equal(t, "Food & Beverage", all[0].Category)
}

func TestHandle_RunningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, ok := f.bot.Handle(ctx, InboundMessage{Text: "gaji bulan ini 5.000.000", SenderID: "628111"})
	require.True(t, ok)
	reply, ok := f.bot.Handle(ctx, InboundMessage{Text: "jajan 50000", SenderID: "628111"})
	require.True(t, ok)
	assert.Contains(t, reply, "Saldo saat ini: Rp 4.950.000")
	assert.Contains(t, reply, "Oleh: 628111", "author falls back to sender id")
}

func TestHandle_NonFinancialChatterIsSilent(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"Halo semua!", "", "   "} {
		reply, ok := f.bot.Handle(context.Background(), InboundMessage{Text: text, SenderID: "628111"})
		assert.False(t, ok, text)
		assert.Empty(t, reply)
	}
	all, _ := f.svc.All(context.Background())
	assert.Empty(t, all)
}

func TestHandle_CommandBeforeClassification(t *testing.T) {
	settings := config.NewMemorySettings(config.DefaultSettings())
	engine := report.NewEngine(time.UTC, func() time.Time { return now })
	svc := services.NewTransactionService(memory.NewStore())
	router := commands.NewRouter(svc, settings, engine, nil, commands.Options{}, nil)

	// An analyzer that would record anything at all.
	greedy := &mockAnalyzer{AnalyzeFunc: func(context.Context, string) *core.ClassificationResult {
		return &core.ClassificationResult{IsFinancial: true, Type: core.Expense, Amount: 1, Description: "x"}
	}}
	b := NewFinanceBot(router, greedy, svc, engine, settings, nil)

	reply, ok := b.Handle(context.Background(), InboundMessage{Text: "summary", SenderID: "628111"})
	require.True(t, ok)
	assert.Contains(t, reply, "RINGKASAN KEUANGAN")
	assert.Equal(t, 0, greedy.calls)
}

func TestHandle_ChatPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := InboundMessage{Text: "jajan 50000", SenderID: "628111", ChatID: "123@g.us", IsGroup: true}

	_, ok := f.bot.Handle(ctx, group)
	assert.False(t, ok, "groups are ignored until allowed")

	_, err := f.settings.AddAllowedGroup("123@g.us")
	require.NoError(t, err)

	reply, ok := f.bot.Handle(ctx, group)
	require.True(t, ok)
	assert.Contains(t, reply, "Transaksi tercatat")
}

func TestHandle_PersistenceFailureApologizes(t *testing.T) {
	settings := config.NewMemorySettings(config.DefaultSettings())
	engine := report.NewEngine(time.UTC, func() time.Time { return now })
	router := commands.NewRouter(services.NewTransactionService(memory.NewStore()), settings, engine, nil, commands.Options{}, nil)
	pattern := classifier.NewMessageClassifier(nil, classifier.NewPatternClassifier(classifier.DefaultRules()), nil)

	rec := &mockRecorder{
		RecordFunc: func(context.Context, core.Transaction) (core.Transaction, error) {
			return core.Transaction{}, errors.New("database is locked")
		},
		AllFunc: func(context.Context) ([]core.Transaction, error) { return nil, nil },
	}
	b := NewFinanceBot(router, pattern, rec, engine, settings, nil)

	reply, ok := b.Handle(context.Background(), InboundMessage{Text: "jajan 50000", SenderID: "628111"})
	require.True(t, ok)
	assert.Equal(t, ApologyReply, reply)
}

func TestHandle_BalanceFetchFailureStillConfirms(t *testing.T) {
	settings := config.NewMemorySettings(config.DefaultSettings())
	engine := report.NewEngine(time.UTC, func() time.Time { return now })
	router := commands.NewRouter(services.NewTransactionService(memory.NewStore()), settings, engine, nil, commands.Options{}, nil)
	pattern := classifier.NewMessageClassifier(nil, classifier.NewPatternClassifier(classifier.DefaultRules()), nil)

	rec := &mockRecorder{
		RecordFunc: func(_ context.Context, tx core.Transaction) (core.Transaction, error) {
			tx.ID = "x"
			return tx, nil
		},
		AllFunc: func(context.Context) ([]core.Transaction, error) { return nil, errors.New("timeout") },
	}
	b := NewFinanceBot(router, pattern, rec, engine, settings, nil)

	reply, ok := b.Handle(context.Background(), InboundMessage{Text: "jajan 50000", SenderID: "628111"})
	require.True(t, ok)
	assert.Contains(t, reply, "Transaksi tercatat")
	assert.Contains(t, reply, "Saldo saat ini: Rp 0")
}
