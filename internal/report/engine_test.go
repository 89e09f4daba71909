package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

var wib = time.FixedZone("WIB", 7*3600)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func tx(typ core.TransactionType, amount int64, category string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:          category + at.Format(time.RFC3339Nano),
		Type:        typ,
		Amount:      amount,
		Description: category,
		Category:    category,
		Author:      "Budi",
		Timestamp:   at,
	}
}

func TestSummarize_Scenario(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, wib)
	e := NewEngine(wib, fixedNow(now))

	txs := []core.Transaction{
		tx(core.Income, 500000, "Gaji", now),
		tx(core.Expense, 25000, "Food & Beverage", now),
		tx(core.Expense, 15000, "Transportasi", now),
	}

	s := e.Summarize(txs)
	assert.Equal(t, int64(500000), s.TotalIncome)
	assert.Equal(t, int64(40000), s.TotalExpense)
	assert.Equal(t, int64(460000), s.Balance)
	assert.Equal(t, 3, s.TransactionCount)
	assert.Equal(t, 1, s.IncomeCount)
	assert.Equal(t, 2, s.ExpenseCount)
}

func TestSummarize_Idempotent(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, wib)
	e := NewEngine(wib, fixedNow(now))
	txs := []core.Transaction{
		tx(core.Income, 100, "Gaji", now),
		tx(core.Expense, 30, "", now),
	}

	assert.Equal(t, e.Summarize(txs), e.Summarize(txs))
}

func TestSummarize_CategoriesPartitionTotals(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, wib)
	e := NewEngine(wib, fixedNow(now))
	txs := []core.Transaction{
		tx(core.Income, 5000000, "Gaji", now),
		tx(core.Income, 750000, "Freelance", now),
		tx(core.Income, 250000, "Freelance", now),
		tx(core.Income, 10000, "", now),
		tx(core.Expense, 20000, "Food & Beverage", now),
		tx(core.Expense, 5000, "  ", now),
	}

	s := e.Summarize(txs)

	var income, expense int64
	for _, b := range s.Income {
		income += b.Total
	}
	for _, b := range s.Expense {
		expense += b.Total
	}
	assert.Equal(t, s.TotalIncome, income)
	assert.Equal(t, s.TotalExpense, expense)

	require.Contains(t, s.Income, "Freelance")
	assert.Equal(t, 2, s.Income["Freelance"].Count)
	assert.Len(t, s.Income["Freelance"].Transactions, 2)
	require.Contains(t, s.Income, core.UncategorizedLabel)
	require.Contains(t, s.Expense, core.UncategorizedLabel)
}

func TestSummarize_Empty(t *testing.T) {
	s := NewEngine(wib, nil).Summarize(nil)
	assert.Zero(t, s.TransactionCount)
	assert.Zero(t, s.Balance)
	assert.NotNil(t, s.Income)
	assert.NotNil(t, s.Expense)
}

func TestDetail_LocalDateAcrossUTCMidnight(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	now := time.Date(2025, 3, 12, 23, 45, 0, 0, est)
	e := NewEngine(est, fixedNow(now))

	lateTonight := time.Date(2025, 3, 12, 23, 30, 0, 0, est)
	require.Equal(t, 13, lateTonight.UTC().Day(), "fixture must be past midnight UTC")

	txs := []core.Transaction{
		tx(core.Expense, 1000, "Food & Beverage", lateTonight),
		tx(core.Expense, 2000, "Transportasi", time.Date(2025, 3, 13, 0, 30, 0, 0, est)),
		tx(core.Expense, 4000, "Belanja", time.Date(2025, 3, 11, 23, 59, 0, 0, est)),
	}

	r := e.Today(txs)
	assert.Equal(t, core.NewDate(2025, 3, 12), r.Start)
	assert.Equal(t, r.Start, r.End)
	require.Len(t, r.Transactions, 1)
	assert.Equal(t, int64(1000), r.Summary.TotalExpense)
}

func TestDetail_InclusiveAndSorted(t *testing.T) {
	e := NewEngine(wib, nil)
	first := time.Date(2025, 3, 1, 0, 0, 0, 0, wib)
	last := time.Date(2025, 3, 31, 23, 59, 59, 0, wib)
	txs := []core.Transaction{
		tx(core.Income, 3, "C", last),
		tx(core.Income, 1, "A", first),
		tx(core.Income, 9, "Out", time.Date(2025, 4, 1, 0, 0, 0, 0, wib)),
	}

	r := e.Detail(txs, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	require.Len(t, r.Transactions, 2)
	assert.Equal(t, "A", r.Transactions[0].Category)
	assert.Equal(t, "C", r.Transactions[1].Category)
	assert.Equal(t, int64(4), r.Summary.TotalIncome)
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		weekStart  core.Date
		weekEnd    core.Date
		monthStart core.Date
		monthEnd   core.Date
	}{
		{
			name:       "wednesday",
			now:        time.Date(2025, 3, 12, 10, 0, 0, 0, wib),
			weekStart:  core.NewDate(2025, 3, 9),
			weekEnd:    core.NewDate(2025, 3, 15),
			monthStart: core.NewDate(2025, 3, 1),
			monthEnd:   core.NewDate(2025, 3, 31),
		},
		{
			name:       "sunday starts the week",
			now:        time.Date(2025, 3, 9, 0, 0, 0, 0, wib),
			weekStart:  core.NewDate(2025, 3, 9),
			weekEnd:    core.NewDate(2025, 3, 15),
			monthStart: core.NewDate(2025, 3, 1),
			monthEnd:   core.NewDate(2025, 3, 31),
		},
		{
			name:       "saturday ends the week across months",
			now:        time.Date(2024, 3, 2, 23, 59, 0, 0, wib),
			weekStart:  core.NewDate(2024, 2, 25),
			weekEnd:    core.NewDate(2024, 3, 2),
			monthStart: core.NewDate(2024, 3, 1),
			monthEnd:   core.NewDate(2024, 3, 31),
		},
		{
			name:       "leap february",
			now:        time.Date(2024, 2, 10, 12, 0, 0, 0, wib),
			weekStart:  core.NewDate(2024, 2, 4),
			weekEnd:    core.NewDate(2024, 2, 10),
			monthStart: core.NewDate(2024, 2, 1),
			monthEnd:   core.NewDate(2024, 2, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(wib, fixedNow(tt.now))

			start, end := e.WeekRange()
			assert.Equal(t, tt.weekStart, start)
			assert.Equal(t, tt.weekEnd, end)

			start, end = e.MonthRange()
			assert.Equal(t, tt.monthStart, start)
			assert.Equal(t, tt.monthEnd, end)
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"today", PeriodToday, true},
		{"week", PeriodWeek, true},
		{"month", PeriodMonth, true},
		{"all", PeriodAll, true},
		{"", PeriodAll, true},
		{"year", PeriodAll, false},
	}
	for _, tt := range tests {
		got, ok := ParsePeriod(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestSortedCategories(t *testing.T) {
	rows := SortedCategories(map[string]*CategoryBreakdown{
		"B": {Total: 100, Count: 1},
		"A": {Total: 100, Count: 2},
		"C": {Total: 500, Count: 1},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
}
