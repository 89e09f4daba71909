package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
	"github.com/nanmax/wa-finance-bot-sub000/internal/report"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

const (
	maxListLimit  = 1000
	defaultAuthor = "api"
)

// TransactionJSON is the wire form of core.Transaction.
type TransactionJSON struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	Timestamp   time.Time `json:"timestamp"`
}

func toJSON(tx core.Transaction) TransactionJSON {
	return TransactionJSON{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Description: tx.Description,
		Category:    tx.CategoryOrDefault(),
		Author:      tx.Author,
		Timestamp:   tx.Timestamp,
	}
}

type createTransactionRequest struct {
	Type        string `json:"type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description" binding:"required"`
	Category    string `json:"category"`
	Author      string `json:"author"`
}

// listOptions turns the from/to/type/author/limit query into store filters.
// from and to are inclusive local dates.
func (s *Server) listOptions(c *gin.Context) (storage.ListOptions, error) {
	var opts storage.ListOptions
	loc := s.reports.Location()

	if v := strings.TrimSpace(c.Query("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return opts, errors.New("invalid 'from' date, expected YYYY-MM-DD")
		}
		opts.From = d.Midnight(loc)
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return opts, errors.New("invalid 'to' date, expected YYYY-MM-DD")
		}
		opts.To = d.AddDays(1).Midnight(loc)
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && !opts.From.Before(opts.To) {
		return opts, errors.New("'from' must not be after 'to'")
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return opts, errors.New("invalid 'type', expected income or expense")
		}
		opts.Type = t
	}
	opts.Author = strings.TrimSpace(c.Query("author"))
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return opts, errors.New("invalid 'limit', expected 1-1000")
		}
		opts.Limit = n
	}
	return opts, nil
}

func (s *Server) handleListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	opts, err := s.listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txs, err := s.ledger.List(ctx, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list transactions", log.FieldOperation, log.OpList, log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	out := make([]TransactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toJSON(tx))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "count": len(out)})
}

func (s *Server) handleCreateTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type, amount and description are required"})
		return
	}
	txType, err := core.ParseTransactionType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be income or expense"})
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = defaultAuthor
	}

	tx := core.NewTransaction(core.ClassificationResult{
		IsFinancial: true,
		Type:        txType,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}, author, req.Description, s.reports.Now())
	if err := tx.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := s.ledger.Record(ctx, tx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to record transaction", log.FieldOperation, log.OpCreate, log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save transaction"})
		return
	}
	s.logger.InfoContext(ctx, "Transaction recorded via API", log.NewFields().
		WithTransaction(saved.ID, string(saved.Type), saved.Amount, saved.Category, saved.Author).
		ToSlice()...)
	c.JSON(http.StatusCreated, toJSON(saved))
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("id"))

	tx, err := s.ledger.Delete(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete transaction",
			log.FieldOperation, log.OpDelete, log.FieldTxID, id, log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete transaction"})
		return
	}
	c.JSON(http.StatusOK, toJSON(tx))
}

// CategoryJSON is one row of a summary breakdown.
type CategoryJSON struct {
	Name  string `json:"name"`
	Total int64  `json:"total"`
	Count int    `json:"count"`
}

// SummaryResponse is the body of GET /api/summary. It is also the value kept
// in the summary cache, so it must survive a JSON round trip.
type SummaryResponse struct {
	Period           string         `json:"period"`
	From             string         `json:"from,omitempty"`
	To               string         `json:"to,omitempty"`
	TotalIncome      int64          `json:"totalIncome"`
	TotalExpense     int64          `json:"totalExpense"`
	Balance          int64          `json:"balance"`
	IncomeCount      int            `json:"incomeCount"`
	ExpenseCount     int            `json:"expenseCount"`
	TransactionCount int            `json:"transactionCount"`
	Income           []CategoryJSON `json:"income"`
	Expense          []CategoryJSON `json:"expense"`
}

func categoriesJSON(m map[string]*report.CategoryBreakdown) []CategoryJSON {
	rows := report.SortedCategories(m)
	out := make([]CategoryJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, CategoryJSON{Name: r.Name, Total: r.Total, Count: r.Count})
	}
	return out
}

func newSummaryResponse(p report.Period, r report.DetailedReport) SummaryResponse {
	resp := SummaryResponse{
		Period:           string(p),
		TotalIncome:      r.Summary.TotalIncome,
		TotalExpense:     r.Summary.TotalExpense,
		Balance:          r.Summary.Balance,
		IncomeCount:      r.Summary.IncomeCount,
		ExpenseCount:     r.Summary.ExpenseCount,
		TransactionCount: r.Summary.TransactionCount,
		Income:           categoriesJSON(r.Summary.Income),
		Expense:          categoriesJSON(r.Summary.Expense),
	}
	if p != report.PeriodAll {
		resp.From = r.Start.String()
		resp.To = r.End.String()
	}
	return resp
}

// generationGuard is implemented by cache.Generational. It keeps a summary
// computed before a concurrent write out of the cache.
type generationGuard interface {
	Generation() uint64
	SetIfCurrent(ctx context.Context, key string, data SummaryResponse, gen uint64) bool
}

// summaryKey includes today's date so that "today" and friends roll over at
// local midnight without an explicit invalidation.
func (s *Server) summaryKey(p report.Period) string {
	start, _ := s.reports.TodayRange()
	return string(p) + ":" + start.String()
}

func (s *Server) handleSummary(c *gin.Context) {
	ctx := c.Request.Context()
	period, ok := report.ParsePeriod(strings.ToLower(strings.TrimSpace(c.Query("period"))))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be one of today, week, month, all"})
		return
	}

	key := s.summaryKey(period)
	if s.summaries != nil {
		if resp, found := s.summaries.Get(ctx, key); found {
			s.logger.DebugContext(ctx, "Summary cache hit", "period", period)
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	guard, guarded := s.summaries.(generationGuard)
	var gen uint64
	if guarded {
		gen = guard.Generation()
	}

	txs, err := s.ledger.All(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions for summary", log.FieldOperation, log.OpRead, log.FieldError, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	resp := newSummaryResponse(period, s.reports.ForPeriod(txs, period))
	switch {
	case guarded:
		if !guard.SetIfCurrent(ctx, key, resp, gen) {
			s.logger.DebugContext(ctx, "Summary not cached, data changed while loading", "period", period)
		}
	case s.summaries != nil:
		s.summaries.Set(ctx, key, resp)
	}
	c.JSON(http.StatusOK, resp)
}
