// Package commands recognizes reserved chat phrases and answers them with
// reports or admin actions instead of recording a transaction.
package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
)

// Sender identifies who wrote a message.
type Sender struct {
	ID      string
	Name    string
	ChatID  string
	IsGroup bool
}

// Author is the name transactions are recorded under: the display name,
// falling back to the sender id.
func (s Sender) Author() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return s.ID
}

// Ledger is the read side and undo of the transaction service.
type Ledger interface {
	All(ctx context.Context) ([]core.Transaction, error)
	UndoLast(ctx context.Context, author string) (core.Transaction, error)
}

// Backupper creates a snapshot and returns its path.
type Backupper interface {
	Create(ctx context.Context) (string, error)
}

type Options struct {
	// SubstringReports routes any message containing "hari ini", "minggu" or
	// "bulan" to the matching report. Off by default since ordinary
	// transaction text such as "bayar kos bulan ini 1500000" would be
	// swallowed as a report request.
	SubstringReports bool
}

type handlerFunc func(ctx context.Context, sender Sender, arg string) string

type command struct {
	handle handlerFunc
	admin  bool
}

type prefixCommand struct {
	prefix string
	usage  string
	command
}

type Router struct {
	ledger   Ledger
	settings *config.SettingsStore
	engine   *report.Engine
	backup   Backupper
	opts     Options
	logger   *log.Logger

	exact    map[string]command
	prefixes []prefixCommand
}

// NewRouter builds a router. backup may be nil, in which case the backup
// command reports that backups are unavailable.
func NewRouter(ledger Ledger, settings *config.SettingsStore, engine *report.Engine, backup Backupper, opts Options, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Router{
		ledger:   ledger,
		settings: settings,
		engine:   engine,
		backup:   backup,
		opts:     opts,
		logger:   logger.WithComponent(log.ComponentCommands),
	}
	r.register()
	return r
}

func (r *Router) register() {
	r.exact = make(map[string]command)
	add := func(h handlerFunc, admin bool, phrases ...string) {
		for _, p := range phrases {
			r.exact[p] = command{handle: h, admin: admin}
		}
	}

	add(r.help, false, "help", "bantuan", "menu")
	add(r.summary, false, "summary", "ringkasan", "saldo")
	add(r.detail, false, "detail", "laporan")
	add(r.periodReport(report.PeriodToday), false, "hari ini", "today", "laporan hari ini")
	add(r.periodReport(report.PeriodWeek), false, "minggu ini", "weekly", "mingguan", "laporan minggu ini")
	add(r.periodReport(report.PeriodMonth), false, "bulan ini", "monthly", "bulanan", "laporan bulan ini")
	add(r.undo, false, "undo", "hapus terakhir")

	add(r.adminPanel, true, "admin")
	add(r.aiStatus, true, "ai status")
	add(r.aiToggle(true), true, "ai on")
	add(r.aiToggle(false), true, "ai off")
	add(r.runBackup, true, "backup")
	add(r.listGroups, true, "groups", "list group")

	// Longer prefixes first so "add backup group" never reads as "add group".
	r.prefixes = []prefixCommand{
		{prefix: "add backup group", usage: "add backup group <id grup>", command: command{handle: r.addBackupGroup, admin: true}},
		{prefix: "add group", usage: "add group <id grup>", command: command{handle: r.addGroup, admin: true}},
		{prefix: "remove group", usage: "remove group <id grup>", command: command{handle: r.removeGroup, admin: true}},
		{prefix: "set ai key", usage: "set ai key <api key>", command: command{handle: r.setAIKey, admin: true}},
	}
}

// Route answers message when it is a command. handled is false when the
// message should go on to classification.
func (r *Router) Route(ctx context.Context, message string, sender Sender) (reply string, handled bool) {
	text := strings.Join(strings.Fields(message), " ")
	if text == "" {
		return "", false
	}
	key := strings.ToLower(text)

	if cmd, ok := r.exact[key]; ok {
		return r.run(ctx, key, cmd, sender, ""), true
	}

	for _, p := range r.prefixes {
		arg, ok := cutPrefixFold(text, p.prefix)
		if !ok {
			continue
		}
		if arg == "" {
			return usage(p.usage), true
		}
		return r.run(ctx, p.prefix, p.command, sender, arg), true
	}

	if r.opts.SubstringReports {
		for _, s := range []struct {
			needle string
			period report.Period
		}{
			{"hari ini", report.PeriodToday},
			{"minggu", report.PeriodWeek},
			{"bulan", report.PeriodMonth},
		} {
			if strings.Contains(key, s.needle) {
				return r.run(ctx, s.needle, command{handle: r.periodReport(s.period)}, sender, ""), true
			}
		}
	}

	return "", false
}

func (r *Router) run(ctx context.Context, name string, cmd command, sender Sender, arg string) string {
	r.logger.InfoContext(ctx, "Command received", log.FieldCommand, name, log.FieldSenderID, sender.ID)
	if cmd.admin && !r.settings.IsAdmin(sender.ID) {
		return "⛔ Perintah ini hanya untuk admin."
	}
	return cmd.handle(ctx, sender, arg)
}

// cutPrefixFold matches prefix case-insensitively as a whole leading phrase
// and returns the remainder with its original case.
func cutPrefixFold(text, prefix string) (string, bool) {
	if len(text) < len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
		return "", false
	}
	rest := text[len(prefix):]
	if rest != "" && rest[0] != ' ' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func usage(form string) string {
	return fmt.Sprintf("⚠️ Format perintah salah.\nGunakan: *%s*", form)
}

// transactions loads every transaction. On failure it logs and returns nil so
// reports degrade to zeroed totals.
func (r *Router) transactions(ctx context.Context) []core.Transaction {
	txs, err := r.ledger.All(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to load transactions for report", log.FieldError, err)
		return nil
	}
	return txs
}

func (r *Router) help(context.Context, Sender, string) string {
	name := r.settings.Snapshot().BotName
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 *%s*\n\n", name)
	b.WriteString("Kirim transaksi dengan bahasa sehari-hari, contoh:\n")
	b.WriteString("• jajan 25.000\n• gaji bulan ini 5.000.000\n• bayar listrik 350000\n\n")
	b.WriteString("*Perintah:*\n")
	b.WriteString("• *summary* / *saldo*: ringkasan keuangan\n")
	b.WriteString("• *hari ini*: laporan hari ini\n")
	b.WriteString("• *minggu ini*: laporan minggu ini\n")
	b.WriteString("• *bulan ini*: laporan bulan ini\n")
	b.WriteString("• *laporan*: laporan lengkap\n")
	b.WriteString("• *undo*: batalkan transaksi terakhir Anda\n")
	b.WriteString("• *admin*: panel admin")
	return b.String()
}

func (r *Router) summary(ctx context.Context, _ Sender, _ string) string {
	return report.FormatSummary(r.engine.Summarize(r.transactions(ctx)))
}

// detail reports everything from the first recorded day up to today.
func (r *Router) detail(ctx context.Context, _ Sender, _ string) string {
	txs := r.transactions(ctx)
	_, today := r.engine.TodayRange()
	start := today
	if len(txs) > 0 {
		if first := core.DateOf(txs[0].Timestamp, r.engine.Location()); first.Before(start) {
			start = first
		}
	}
	return r.engine.FormatDetail("Laporan Lengkap", r.engine.Detail(txs, start, today))
}

func (r *Router) periodReport(p report.Period) handlerFunc {
	titles := map[report.Period]string{
		report.PeriodToday: "Laporan Hari Ini",
		report.PeriodWeek:  "Laporan Minggu Ini",
		report.PeriodMonth: "Laporan Bulan Ini",
	}
	return func(ctx context.Context, _ Sender, _ string) string {
		return r.engine.FormatDetail(titles[p], r.engine.ForPeriod(r.transactions(ctx), p))
	}
}

func (r *Router) undo(ctx context.Context, sender Sender, _ string) string {
	tx, err := r.ledger.UndoLast(ctx, sender.Author())
	if errors.Is(err, core.ErrNotFound) {
		return "ℹ️ Tidak ada transaksi Anda yang bisa dibatalkan."
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Undo failed", log.FieldAuthor, sender.Author(), log.FieldError, err)
		return "❌ Maaf, transaksi gagal dibatalkan. Silakan coba lagi."
	}
	return fmt.Sprintf("↩️ *Transaksi dibatalkan*\n%s %s (%s)\n%s",
		tx.Type.Label(), core.FormatRupiah(tx.Amount), tx.CategoryOrDefault(), tx.Description)
}

func (r *Router) adminPanel(context.Context, Sender, string) string {
	s := r.settings.Snapshot()
	var b strings.Builder
	b.WriteString("🛠️ *PANEL ADMIN*\n\n")
	fmt.Fprintf(&b, "Nama bot: %s\n", s.BotName)
	fmt.Fprintf(&b, "AI: %s\n", onOff(r.settings.AIEnabled()))
	fmt.Fprintf(&b, "API key: %s\n", maskKey(r.settings.AIAPIKey()))
	fmt.Fprintf(&b, "Proses semua grup: %s\n", onOff(s.AutoProcessAllGroups))
	fmt.Fprintf(&b, "Grup diizinkan: %d\n", len(s.AllowedGroups))
	fmt.Fprintf(&b, "Grup backup: %d\n\n", len(s.BackupGroups))
	b.WriteString("*Perintah admin:*\n")
	b.WriteString("• add group <id> / remove group <id>\n")
	b.WriteString("• groups\n")
	b.WriteString("• add backup group <id>\n")
	b.WriteString("• ai on / ai off / ai status\n")
	b.WriteString("• set ai key <api key>\n")
	b.WriteString("• backup")
	return b.String()
}

func (r *Router) aiStatus(context.Context, Sender, string) string {
	return fmt.Sprintf("🤖 *STATUS AI*\nStatus: %s\nAPI key: %s",
		onOff(r.settings.AIEnabled()), maskKey(r.settings.AIAPIKey()))
}

func (r *Router) aiToggle(enabled bool) handlerFunc {
	return func(ctx context.Context, _ Sender, _ string) string {
		if err := r.settings.SetAIEnabled(enabled); err != nil {
			return r.settingsFailed(ctx, err)
		}
		if !enabled {
			return "🤖 AI dinonaktifkan. Klasifikasi memakai pola kata kunci."
		}
		if r.settings.AIAPIKey() == "" {
			return "🤖 AI diaktifkan, tetapi API key belum diatur.\nGunakan: *set ai key <api key>*"
		}
		return "🤖 AI diaktifkan."
	}
}

func (r *Router) setAIKey(ctx context.Context, _ Sender, key string) string {
	if err := r.settings.SetAIAPIKey(key); err != nil {
		return r.settingsFailed(ctx, err)
	}
	return fmt.Sprintf("🔑 API key disimpan (%s).", maskKey(key))
}

func (r *Router) addGroup(ctx context.Context, _ Sender, id string) string {
	added, err := r.settings.AddAllowedGroup(id)
	if err != nil {
		return r.settingsFailed(ctx, err)
	}
	if !added {
		return fmt.Sprintf("ℹ️ Grup %s sudah diizinkan.", id)
	}
	return fmt.Sprintf("✅ Grup %s ditambahkan.", id)
}

func (r *Router) removeGroup(ctx context.Context, _ Sender, id string) string {
	removed, err := r.settings.RemoveAllowedGroup(id)
	if err != nil {
		return r.settingsFailed(ctx, err)
	}
	if !removed {
		return fmt.Sprintf("ℹ️ Grup %s tidak ada di daftar.", id)
	}
	return fmt.Sprintf("✅ Grup %s dihapus.", id)
}

func (r *Router) addBackupGroup(ctx context.Context, _ Sender, id string) string {
	added, err := r.settings.AddBackupGroup(id)
	if err != nil {
		return r.settingsFailed(ctx, err)
	}
	if !added {
		return fmt.Sprintf("ℹ️ Grup %s sudah menjadi grup backup.", id)
	}
	return fmt.Sprintf("✅ Grup backup %s ditambahkan.", id)
}

func (r *Router) listGroups(context.Context, Sender, string) string {
	s := r.settings.Snapshot()
	var b strings.Builder
	b.WriteString("👥 *DAFTAR GRUP*\n")
	if s.AutoProcessAllGroups {
		b.WriteString("Semua grup diproses otomatis.\n")
	}
	b.WriteString("\n*Diizinkan:*\n")
	writeList(&b, s.AllowedGroups)
	b.WriteString("\n*Backup:*\n")
	writeList(&b, s.BackupGroups)
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) runBackup(ctx context.Context, _ Sender, _ string) string {
	if r.backup == nil {
		return "ℹ️ Backup tidak tersedia."
	}
	path, err := r.backup.Create(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Backup failed", log.FieldError, err)
		return "❌ Gagal membuat backup."
	}
	return fmt.Sprintf("💾 Backup dibuat: %s", filepath.Base(path))
}

func (r *Router) settingsFailed(ctx context.Context, err error) string {
	r.logger.ErrorContext(ctx, "Failed to persist settings", log.FieldError, err)
	return "❌ Gagal menyimpan pengaturan."
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("(kosong)\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "• %s\n", it)
	}
}

func onOff(v bool) string {
	if v {
		return "Aktif"
	}
	return "Nonaktif"
}

func maskKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "belum diatur"
	case len(key) <= 4:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
