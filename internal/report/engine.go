// Package report aggregates transactions into summaries and date-range
// reports and renders them as chat text.
package report

import (
	"sort"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

// CategoryBreakdown aggregates the transactions of one category.
type CategoryBreakdown struct {
	Total        int64
	Count        int
	Transactions []core.Transaction
}

// Summary is derived from a transaction set and never stored.
type Summary struct {
	TotalIncome      int64
	TotalExpense     int64
	Balance          int64
	IncomeCount      int
	ExpenseCount     int
	TransactionCount int
	Income           map[string]*CategoryBreakdown
	Expense          map[string]*CategoryBreakdown
}

// DetailedReport is a Summary restricted to an inclusive range of local dates.
type DetailedReport struct {
	Start        core.Date
	End          core.Date
	Summary      Summary
	Transactions []core.Transaction // oldest first
}

// Period selects one of the canned report ranges.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod maps a period name to a Period, defaulting to PeriodAll.
func ParsePeriod(s string) (Period, bool) {
	switch p := Period(s); p {
	case PeriodToday, PeriodWeek, PeriodMonth, PeriodAll:
		return p, true
	case "":
		return PeriodAll, true
	default:
		return PeriodAll, false
	}
}

// Engine computes reports in a fixed time zone. Calendar filtering uses the
// local date of each timestamp, so 23:30 local time counts for that local day
// even when the instant is already past midnight UTC.
type Engine struct {
	loc *time.Location
	now func() time.Time
}

// NewEngine returns an engine for loc. A nil now defaults to time.Now.
func NewEngine(loc *time.Location, now func() time.Time) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{loc: loc, now: now}
}

// Location returns the zone used for calendar filtering and formatting.
func (e *Engine) Location() *time.Location { return e.loc }

// Now returns the current instant in the engine's zone.
func (e *Engine) Now() time.Time { return e.now().In(e.loc) }

// Summarize aggregates txs. It is a pure function of its input.
func (e *Engine) Summarize(txs []core.Transaction) Summary {
	return summarize(txs)
}

func summarize(txs []core.Transaction) Summary {
	s := emptySummary()
	for _, tx := range txs {
		var bucket map[string]*CategoryBreakdown
		switch tx.Type {
		case core.Income:
			s.TotalIncome += tx.Amount
			s.IncomeCount++
			bucket = s.Income
		case core.Expense:
			s.TotalExpense += tx.Amount
			s.ExpenseCount++
			bucket = s.Expense
		default:
			continue
		}
		s.TransactionCount++

		cat := tx.CategoryOrDefault()
		b, ok := bucket[cat]
		if !ok {
			b = &CategoryBreakdown{}
			bucket[cat] = b
		}
		b.Total += tx.Amount
		b.Count++
		b.Transactions = append(b.Transactions, tx)
	}
	s.Balance = s.TotalIncome - s.TotalExpense
	return s
}

func emptySummary() Summary {
	return Summary{
		Income:  map[string]*CategoryBreakdown{},
		Expense: map[string]*CategoryBreakdown{},
	}
}

// EmptyReport is the zeroed report returned when transactions cannot be loaded.
func EmptyReport(start, end core.Date) DetailedReport {
	return DetailedReport{Start: start, End: end, Summary: emptySummary()}
}

// Detail summarizes the transactions whose local calendar date lies in [start, end].
func (e *Engine) Detail(txs []core.Transaction, start, end core.Date) DetailedReport {
	var in []core.Transaction
	for _, tx := range txs {
		if core.DateOf(tx.Timestamp, e.loc).Between(start, end) {
			in = append(in, tx)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Timestamp.Before(in[j].Timestamp)
	})
	return DetailedReport{
		Start:        start,
		End:          end,
		Summary:      summarize(in),
		Transactions: in,
	}
}

func (e *Engine) today() core.Date {
	return core.DateOf(e.now(), e.loc)
}

// TodayRange is [today, today].
func (e *Engine) TodayRange() (core.Date, core.Date) {
	d := e.today()
	return d, d
}

// WeekRange is the Sunday..Saturday week containing today.
func (e *Engine) WeekRange() (core.Date, core.Date) {
	d := e.today()
	weekday := d.Midnight(e.loc).Weekday()
	start := d.AddDays(-int(weekday))
	return start, start.AddDays(6)
}

// MonthRange is the first..last day of the current month.
func (e *Engine) MonthRange() (core.Date, core.Date) {
	d := e.today()
	start := core.NewDate(d.Year, d.Month, 1)
	end := core.NewDate(d.Year, d.Month+1, 0)
	return start, end
}

// Range returns the dates of a canned period. PeriodAll spans every date.
func (e *Engine) Range(p Period) (core.Date, core.Date) {
	switch p {
	case PeriodToday:
		return e.TodayRange()
	case PeriodWeek:
		return e.WeekRange()
	case PeriodMonth:
		return e.MonthRange()
	default:
		return core.Date{Year: 1, Month: time.January, Day: 1}, core.Date{Year: 9999, Month: time.December, Day: 31}
	}
}

func (e *Engine) Today(txs []core.Transaction) DetailedReport {
	start, end := e.TodayRange()
	return e.Detail(txs, start, end)
}

func (e *Engine) Week(txs []core.Transaction) DetailedReport {
	start, end := e.WeekRange()
	return e.Detail(txs, start, end)
}

func (e *Engine) Month(txs []core.Transaction) DetailedReport {
	start, end := e.MonthRange()
	return e.Detail(txs, start, end)
}

// ForPeriod is Detail over Range(p).
func (e *Engine) ForPeriod(txs []core.Transaction, p Period) DetailedReport {
	start, end := e.Range(p)
	return e.Detail(txs, start, end)
}

// CategoryTotal is one row of a sorted breakdown.
type CategoryTotal struct {
	Name  string
	Total int64
	Count int
}

// SortedCategories orders a breakdown by total descending, then by name.
func SortedCategories(m map[string]*CategoryBreakdown) []CategoryTotal {
	rows := make([]CategoryTotal, 0, len(m))
	for name, b := range m {
		rows = append(rows, CategoryTotal{Name: name, Total: b.Total, Count: b.Count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
