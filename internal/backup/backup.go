// Package backup snapshots transactions and bot settings into zip archives
// and restores them.
package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/config"
	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

const (
	transactionsFile = "transactions.json"
	settingsFile     = "settings.json"
	filePrefix       = "backup-"
	fileLayout       = "20060102-150405"
	maxEntrySize     = 256 << 20
)

var ErrMissingTransactions = errors.New("backup has no " + transactionsFile)

type (
	Ledger interface {
		All(ctx context.Context) ([]core.Transaction, error)
		Restore(ctx context.Context, txs []core.Transaction) error
	}

	SettingsSource interface {
		Snapshot() config.Settings
		Replace(s config.Settings) error
	}
)

// record is the archived form of core.Transaction.
type record struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	Description     string    `json:"description"`
	Category        string    `json:"category,omitempty"`
	Author          string    `json:"author"`
	Timestamp       time.Time `json:"timestamp"`
	OriginalMessage string    `json:"originalMessage,omitempty"`
}

func toRecord(tx core.Transaction) record {
	return record{
		ID:              tx.ID,
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		Description:     tx.Description,
		Category:        tx.Category,
		Author:          tx.Author,
		Timestamp:       tx.Timestamp,
		OriginalMessage: tx.OriginalMessage,
	}
}

func (r record) transaction() core.Transaction {
	return core.Transaction{
		ID:              r.ID,
		Type:            core.TransactionType(strings.ToLower(r.Type)),
		Amount:          r.Amount,
		Description:     r.Description,
		Category:        r.Category,
		Author:          r.Author,
		Timestamp:       r.Timestamp,
		OriginalMessage: r.OriginalMessage,
	}
}

type Service struct {
	dir      string
	ledger   Ledger
	settings SettingsSource
	now      func() time.Time
	logger   *log.Logger
}

// NewService stores archives in dir. settings may be nil, in which case
// archives carry transactions only.
func NewService(dir string, ledger Ledger, settings SettingsSource, now func() time.Time, logger *log.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		dir:      dir,
		ledger:   ledger,
		settings: settings,
		now:      now,
		logger:   logger.WithComponent(log.ComponentBackup),
	}
}

// Create writes a new archive and returns its path. The archive is written
// to a temporary file and renamed, so a partial archive is never visible.
func (s *Service) Create(ctx context.Context) (string, error) {
	txs, err := s.ledger.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load transactions: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.writeArchive(tmp, txs); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	path := filepath.Join(s.dir, filePrefix+s.now().Format(fileLayout)+".zip")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	s.logger.InfoContext(ctx, "Backup created", "path", path, "transactions", len(txs))
	return path, nil
}

func (s *Service) writeArchive(w io.Writer, txs []core.Transaction) error {
	zw := zip.NewWriter(w)

	records := make([]record, 0, len(txs))
	for _, tx := range txs {
		records = append(records, toRecord(tx))
	}
	if err := writeJSON(zw, transactionsFile, records); err != nil {
		return err
	}

	if s.settings != nil {
		snap := s.settings.Snapshot()
		// Credentials stay out of archives that may be shared to a group.
		snap.AIAPIKey = ""
		if err := writeJSON(zw, settingsFile, snap); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// RestoreOptions controls what Restore replaces besides transactions.
type RestoreOptions struct {
	Settings bool
}

// Restore replaces every stored transaction with the archive's content. The
// archive is fully read and validated before anything is replaced. It
// returns the number of restored transactions.
func (s *Service) Restore(ctx context.Context, path string, opts RestoreOptions) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var (
		records  []record
		settings *config.Settings
		found    bool
	)
	for _, f := range zr.File {
		switch f.Name {
		case transactionsFile:
			if err := readJSON(f, &records); err != nil {
				return 0, err
			}
			found = true
		case settingsFile:
			if opts.Settings {
				var st config.Settings
				if err := readJSON(f, &st); err != nil {
					return 0, err
				}
				settings = &st
			}
		}
	}
	if !found {
		return 0, ErrMissingTransactions
	}

	txs := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		tx := r.transaction()
		if strings.TrimSpace(tx.ID) == "" {
			return 0, fmt.Errorf("record %d: missing id", i)
		}
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("record %d (%s): %w", i, tx.ID, err)
		}
		txs = append(txs, tx)
	}

	if err := s.ledger.Restore(ctx, txs); err != nil {
		return 0, err
	}

	if settings != nil && s.settings != nil {
		if settings.AIAPIKey == "" {
			settings.AIAPIKey = s.settings.Snapshot().AIAPIKey
		}
		if err := s.settings.Replace(*settings); err != nil {
			return len(txs), fmt.Errorf("restore settings: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "Backup restored", "path", path, "transactions", len(txs), "settings", settings != nil)
	return len(txs), nil
}

func readJSON(f *zip.File, v any) error {
	if f.UncompressedSize64 > maxEntrySize {
		return fmt.Errorf("%s is too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if err := json.NewDecoder(io.LimitReader(rc, maxEntrySize)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return nil
}

// List returns the archive paths in the backup dir, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	// The timestamp layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}
