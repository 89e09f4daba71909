// Package postgres is a TransactionStore backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

//go:embed schema.sql
var schema string

const columns = `id, type, amount, description, category, author, occurred_at, original_message`

type Store struct {
	db *sql.DB
}

// Options tunes the initial connection attempts.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NormalizeURL rewrites postgresql:// to postgres:// and defaults sslmode to disable.
func NormalizeURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		sep := "?"
		if strings.Contains(databaseURL, "?") {
			sep = "&"
		}
		databaseURL += sep + "sslmode=disable"
	}
	return databaseURL
}

// Open connects to databaseURL, retrying while the server comes up, and
// applies the embedded schema.
func Open(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	config, err := pgx.ParseConfig(NormalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	var db *sql.DB
	for attempt := 1; ; attempt++ {
		db = stdlib.OpenDB(*config)
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		db.Close()
		if attempt >= opts.MaxRetries {
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		slog.WarnContext(ctx, "Database not ready, retrying",
			"attempt", attempt, "max_attempts", opts.MaxRetries, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	slog.InfoContext(ctx, "Database connection established", "backend", "postgres")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, tx core.Transaction) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, string(tx.Type), tx.Amount, tx.Description, tx.Category, tx.Author,
		tx.Timestamp, tx.OriginalMessage)
	return err
}

func scan(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx  core.Transaction
		typ string
	)
	if err := row.Scan(&tx.ID, &typ, &tx.Amount, &tx.Description, &tx.Category, &tx.Author, &tx.Timestamp, &tx.OriginalMessage); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	return tx, nil
}

func (s *Store) Save(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx, err := storage.PrepareForSave(tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := insert(ctx, s.db, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved to Postgres", "id", tx.ID, "type", tx.Type, "amount", tx.Amount)
	return tx, nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scan(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !opts.From.IsZero() {
		add("occurred_at >= $%d", opts.From)
	}
	if !opts.To.IsZero() {
		add("occurred_at < $%d", opts.To)
	}
	if opts.Type != "" {
		add("type = $%d", string(opts.Type))
	}
	if opts.Author != "" {
		add("author = $%d", opts.Author)
	}

	query := `SELECT ` + columns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at ASC, seq ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("delete all transactions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ReplaceAll(ctx context.Context, txs []core.Transaction) error {
	prepared := make([]core.Transaction, 0, len(txs))
	for i, tx := range txs {
		p, err := storage.PrepareForSave(tx)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		prepared = append(prepared, p)
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for _, tx := range prepared {
		if err := insert(ctx, dbtx, tx); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return dbtx.Commit()
}

func (s *Store) LastByAuthor(ctx context.Context, author string) (core.Transaction, error) {
	tx, err := scan(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM transactions WHERE author = $1 ORDER BY occurred_at DESC, seq DESC LIMIT 1`, author))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last transaction of %s: %w", author, err)
	}
	return tx, nil
}

var _ storage.TransactionStore = (*Store)(nil)
