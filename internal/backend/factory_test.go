package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/amqp"
	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/services"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage/memory"
)

type stubPublisher struct{ closed bool }

func (p *stubPublisher) PublishTransactionEvent(context.Context, *amqp.TransactionEvent) error {
	return nil
}

func (p *stubPublisher) Close() error {
	p.closed = true
	return nil
}

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		bt   BackendType
		want bool
	}{
		{SQLiteBackend, true},
		{PostgresBackend, true},
		{MemoryBackend, true},
		{"sheets", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.bt.IsValid(); got != tt.want {
			t.Errorf("BackendType(%q).IsValid() = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "x"}, true},
		{"unknown type", Config{Type: "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "postgres",
		DatabaseURL:  "postgres://localhost/finance",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "finbot",
		AMQPQueue:    "sheets_sync",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://localhost/finance" || cfg.AMQPQueue != "sheets_sync" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("FromAppConfig() should reject unknown backend")
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if _, ok := res.Store.(*memory.Store); !ok {
		t.Errorf("Store = %T, want *memory.Store", res.Store)
	}
	if res.Publisher != nil {
		t.Error("Publisher should be nil without AMQP")
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	f := NewFactory(nil)
	path := filepath.Join(t.TempDir(), "finance.db")
	res, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	saved, err := res.Store.Save(context.Background(), core.Transaction{
		Type:        core.Expense,
		Amount:      50000,
		Description: "jajan",
		Author:      "Budi",
		Timestamp:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID == "" {
		t.Error("Save() should assign an id")
	}
}

func TestCreateBackend_AMQP(t *testing.T) {
	cfg := Config{Type: MemoryBackend, AMQPURL: "amqp://localhost", AMQPExchange: "finbot", AMQPQueue: "sheets_sync"}

	t.Run("publisher attached and closed by cleanup", func(t *testing.T) {
		pub := &stubPublisher{}
		f := NewFactory(nil)
		f.dialAMQP = func(string, string, string) (services.EventPublisher, error) { return pub, nil }

		res, err := f.CreateBackend(context.Background(), cfg)
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		if res.Publisher != pub {
			t.Errorf("Publisher = %v, want stub", res.Publisher)
		}
		if err := res.Cleanup(); err != nil {
			t.Errorf("Cleanup() error = %v", err)
		}
		if !pub.closed {
			t.Error("Cleanup() should close the publisher")
		}
	})

	t.Run("broker unreachable is not fatal", func(t *testing.T) {
		f := NewFactory(nil)
		f.dialAMQP = func(string, string, string) (services.EventPublisher, error) {
			return nil, errors.New("dial tcp: connection refused")
		}

		res, err := f.CreateBackend(context.Background(), cfg)
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		if res.Publisher != nil {
			t.Error("Publisher should be nil when dialing fails")
		}
	})
}
