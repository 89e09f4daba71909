package memory

import (
	"context"
	"testing"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

func tx(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        core.Expense,
		Amount:      123,
		Description: "t",
		Author:      "Budi",
		Timestamp:   time.Now(),
	}
}

func TestMemoryStoreAppendAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, tx("a"))
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.Append(ctx, tx("b"))
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "never-mirrored"); err != nil {
		t.Fatalf("Delete(unknown) error = %v", err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("Rows() = %+v", rows)
	}

	// references keep increasing after deletes
	if ref, _ := s.Append(ctx, tx("c")); ref != "mem:3" {
		t.Errorf("ref = %q, want mem:3", ref)
	}
}

func TestMemoryStoreRejectsInvalid(t *testing.T) {
	s := New()
	bad := tx("x")
	bad.Amount = 0
	if _, err := s.Append(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
}
