package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLength bounds Transaction.Description in bytes.
const MaxDescriptionLength = 500

// UncategorizedLabel is the bucket used when a transaction carries no category.
const UncategorizedLabel = "Uncategorized"

type (
	TransactionType string

	// Transaction is a single recorded income or expense event.
	// It is immutable once created; the only allowed mutation is deletion by ID.
	Transaction struct {
		ID              string
		Type            TransactionType
		Amount          int64 // whole currency units, always positive
		Description     string
		Category        string
		Author          string
		Timestamp       time.Time
		OriginalMessage string
	}

	// ClassificationResult is the transient verdict of a classifier.
	ClassificationResult struct {
		IsFinancial bool
		Type        TransactionType
		Amount      int64
		Description string
		Category    string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrNotFound         = errors.New("transaction not found")
)

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the user-facing name of the type.
func (t TransactionType) Label() string {
	switch t {
	case Income:
		return "Pemasukan"
	case Expense:
		return "Pengeluaran"
	default:
		return string(t)
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// CategoryOrDefault returns the category, or UncategorizedLabel when empty.
func (tx Transaction) CategoryOrDefault() string {
	if c := strings.TrimSpace(tx.Category); c != "" {
		return c
	}
	return UncategorizedLabel
}

func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if tx.Amount <= 0 {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(tx.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(tx.Description) > MaxDescriptionLength {
		return errors.New("description too long (max 500 characters)")
	}
	if tx.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// NewTransaction builds a transaction from a classifier verdict.
// The timestamp is taken here and never changed afterwards; the ID is left
// empty for the store to assign.
func NewTransaction(r ClassificationResult, author, original string, now time.Time) Transaction {
	desc := r.Description
	if strings.TrimSpace(desc) == "" {
		desc = original
	}
	desc = truncate(desc, MaxDescriptionLength)
	return Transaction{
		Type:            r.Type,
		Amount:          r.Amount,
		Description:     desc,
		Category:        strings.TrimSpace(r.Category),
		Author:          author,
		Timestamp:       now,
		OriginalMessage: original,
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
