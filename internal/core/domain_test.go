package core

import (
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	good := Transaction{
		Type:        Expense,
		Amount:      25000,
		Description: "makan siang",
		Category:    "Food & Beverage",
		Author:      "Budi",
		Timestamp:   now,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Type: "transfer", Amount: 1, Description: "a", Timestamp: now},
		{Type: Income, Amount: 0, Description: "a", Timestamp: now},
		{Type: Income, Amount: -5, Description: "a", Timestamp: now},
		{Type: Income, Amount: 1, Description: "  ", Timestamp: now},
		{Type: Income, Amount: 1, Description: "a"},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseTransactionType(t *testing.T) {
	if got, err := ParseTransactionType(" Income "); err != nil || got != Income {
		t.Fatalf("expected income, got %q (err=%v)", got, err)
	}
	if _, err := ParseTransactionType("refund"); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	r := ClassificationResult{IsFinancial: true, Type: Income, Amount: 5000000, Description: "", Category: " Gaji "}
	tx := NewTransaction(r, "Budi", "gaji bulan ini 5000000", now)

	if tx.ID != "" {
		t.Fatalf("ID must be assigned by the store, got %q", tx.ID)
	}
	if tx.Description != "gaji bulan ini 5000000" {
		t.Fatalf("description should fall back to the original message, got %q", tx.Description)
	}
	if tx.Category != "Gaji" {
		t.Fatalf("category not trimmed: %q", tx.Category)
	}
	if !tx.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", tx.Timestamp, now)
	}
}

func TestNewTransaction_KeepsMessageVerbatim(t *testing.T) {
	raw := "  jajan 50000\n"
	r := ClassificationResult{IsFinancial: true, Type: Expense, Amount: 50000, Description: raw, Category: "Food & Beverage"}
	tx := NewTransaction(r, "Budi", raw, time.Now())

	if tx.OriginalMessage != raw {
		t.Fatalf("original message = %q, want %q", tx.OriginalMessage, raw)
	}
	if tx.Description != raw {
		t.Fatalf("description = %q, want %q", tx.Description, raw)
	}
}

func TestCategoryOrDefault(t *testing.T) {
	if got := (Transaction{}).CategoryOrDefault(); got != UncategorizedLabel {
		t.Fatalf("got %q", got)
	}
	if got := (Transaction{Category: "Gaji"}).CategoryOrDefault(); got != "Gaji" {
		t.Fatalf("got %q", got)
	}
}

func TestDateOf_LocalCalendarDay(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 23:30 local on March 10 is 16:30 UTC the same day
	late := time.Date(2025, 3, 10, 23, 30, 0, 0, jakarta)
	if got := DateOf(late, jakarta); got != (Date{2025, time.March, 10}) {
		t.Fatalf("DateOf = %v", got)
	}
	// 00:30 local on March 11 is still March 10 in UTC
	early := time.Date(2025, 3, 11, 0, 30, 0, 0, jakarta)
	if got := DateOf(early, jakarta); got != (Date{2025, time.March, 11}) {
		t.Fatalf("DateOf local = %v", got)
	}
	if got := DateOf(early, time.UTC); got != (Date{2025, time.March, 10}) {
		t.Fatalf("DateOf utc = %v", got)
	}
}

func TestDateBetween(t *testing.T) {
	start := NewDate(2025, time.March, 1)
	end := NewDate(2025, time.March, 31)
	cases := []struct {
		d  Date
		in bool
	}{
		{NewDate(2025, time.March, 1), true},
		{NewDate(2025, time.March, 31), true},
		{NewDate(2025, time.March, 15), true},
		{NewDate(2025, time.February, 28), false},
		{NewDate(2025, time.April, 1), false},
		{NewDate(2024, time.March, 15), false},
	}
	for i, tc := range cases {
		if got := tc.d.Between(start, end); got != tc.in {
			t.Fatalf("case %d: Between(%v) = %v, want %v", i, tc.d, got, tc.in)
		}
	}
	if got := NewDate(2025, time.January, 32); got != (Date{2025, time.February, 1}) {
		t.Fatalf("NewDate normalization = %v", got)
	}
	if got := NewDate(2025, time.March, 1).AddDays(-1); got.String() != "2025-02-28" {
		t.Fatalf("AddDays = %v", got)
	}
}
