package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage/storagetest"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgresql://u:p@db:5432/finance", "postgres://u:p@db:5432/finance?sslmode=disable"},
		{"postgres://db/finance?application_name=bot", "postgres://db/finance?application_name=bot&sslmode=disable"},
		{"postgres://db/finance?sslmode=require", "postgres://db/finance?sslmode=require"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestStore runs against a real server when TEST_DATABASE_URL is set.
func TestStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.TransactionStore {
		ctx := context.Background()
		s, err := Open(ctx, url, Options{MaxRetries: 1, RetryDelay: time.Second})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := s.DeleteAll(ctx); err != nil {
			t.Fatalf("DeleteAll() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
