package report

import (
	"fmt"
	"strings"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

const recentLimit = 10

// FormatSummary renders the all-time totals.
func FormatSummary(s Summary) string {
	var b strings.Builder
	b.WriteString("📊 *RINGKASAN KEUANGAN*\n\n")
	writeTotals(&b, s)
	if len(s.Expense) > 0 {
		b.WriteString("\n*Pengeluaran per Kategori:*\n")
		writeCategories(&b, s.Expense)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTotals(b *strings.Builder, s Summary) {
	fmt.Fprintf(b, "💰 Total Pemasukan: %s\n", core.FormatRupiah(s.TotalIncome))
	fmt.Fprintf(b, "💸 Total Pengeluaran: %s\n", core.FormatRupiah(s.TotalExpense))
	fmt.Fprintf(b, "💵 Saldo: %s\n", core.FormatRupiah(s.Balance))
	fmt.Fprintf(b, "📝 Jumlah Transaksi: %d\n", s.TransactionCount)
}

func writeCategories(b *strings.Builder, m map[string]*CategoryBreakdown) {
	for _, row := range SortedCategories(m) {
		fmt.Fprintf(b, "• %s: %s (%dx)\n", row.Name, core.FormatRupiah(row.Total), row.Count)
	}
}

// FormatDetail renders a range report with per-category breakdowns and the
// most recent transactions.
func (e *Engine) FormatDetail(title string, r DetailedReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *%s*\n", strings.ToUpper(title))
	if r.Start.Equal(r.End) {
		fmt.Fprintf(&b, "Tanggal: %s\n\n", e.formatDate(r.Start))
	} else {
		fmt.Fprintf(&b, "Periode: %s - %s\n\n", e.formatDate(r.Start), e.formatDate(r.End))
	}

	s := r.Summary
	if s.TransactionCount == 0 {
		b.WriteString("Belum ada transaksi pada periode ini.")
		return b.String()
	}

	writeTotals(&b, s)
	if len(s.Income) > 0 {
		b.WriteString("\n*Pemasukan per Kategori:*\n")
		writeCategories(&b, s.Income)
	}
	if len(s.Expense) > 0 {
		b.WriteString("\n*Pengeluaran per Kategori:*\n")
		writeCategories(&b, s.Expense)
	}

	b.WriteString("\n*Transaksi Terakhir:*\n")
	n := 0
	for i := len(r.Transactions) - 1; i >= 0 && n < recentLimit; i-- {
		tx := r.Transactions[i]
		sign := "➖"
		if tx.Type == core.Income {
			sign = "➕"
		}
		fmt.Fprintf(&b, "%s %s %s %s - %s\n",
			sign,
			tx.Timestamp.In(e.loc).Format("02/01 15:04"),
			tx.CategoryOrDefault(),
			core.FormatRupiah(tx.Amount),
			tx.Author)
		n++
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) formatDate(d core.Date) string {
	return d.Midnight(e.loc).Format("02/01/2006")
}

// FormatTransactionSaved is the confirmation sent after a transaction is recorded.
func FormatTransactionSaved(tx core.Transaction, s Summary) string {
	icon := "💸"
	if tx.Type == core.Income {
		icon = "💰"
	}
	var b strings.Builder
	b.WriteString("✅ *Transaksi tercatat!*\n\n")
	fmt.Fprintf(&b, "%s %s: %s\n", icon, tx.Type.Label(), core.FormatRupiah(tx.Amount))
	fmt.Fprintf(&b, "🏷️ Kategori: %s\n", tx.CategoryOrDefault())
	fmt.Fprintf(&b, "📝 Keterangan: %s\n", tx.Description)
	if tx.Author != "" {
		fmt.Fprintf(&b, "👤 Oleh: %s\n", tx.Author)
	}
	fmt.Fprintf(&b, "\n💵 Saldo saat ini: %s", core.FormatRupiah(s.Balance))
	return b.String()
}
