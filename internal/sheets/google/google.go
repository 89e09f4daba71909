// Package google mirrors transactions into a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	ports "github.com/nanmax/wa-finance-bot-sub000/internal/sheets"
)

// Options configures a Writer. A service account (CredentialsJSON, or
// CredentialsFile) is preferred; otherwise an OAuth client plus a token saved
// by cmd/finbot-sheets-auth authenticates as a user.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
	Location        *time.Location

	// ClientOptions replace the credential options entirely, for tests.
	ClientOptions []goption.ClientOption
}

type Writer struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location

	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*Writer)(nil)
	_ ports.TransactionDeleter = (*Writer)(nil)
)

func NewWriter(ctx context.Context, opts Options) (*Writer, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		opts.SheetName = "Transaksi"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	clientOpts := opts.ClientOptions
	if clientOpts == nil {
		var err error
		clientOpts, err = authOptions(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets writer created", "sheet", opts.SheetName)
	return &Writer{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
		loc:           opts.Location,
	}, nil
}

func authOptions(ctx context.Context, opts Options) ([]goption.ClientOption, error) {
	serviceAccount := strings.TrimSpace(opts.CredentialsJSON) != "" || strings.TrimSpace(opts.CredentialsFile) != ""
	if !serviceAccount && strings.TrimSpace(opts.OAuthTokenFile) != "" {
		clientJSON, err := ReadOAuthClient(opts.OAuthClientJSON, opts.OAuthClientFile)
		if err != nil {
			return nil, err
		}
		cfg, err := OAuthConfig(clientJSON, "")
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(opts.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user token", "path", opts.OAuthTokenFile)
		return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, tok))}, nil
	}

	creds, err := credentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func credentials(ctx context.Context, opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Append adds one row for tx at the bottom of the sheet and returns the
// updated A1 range.
func (w *Writer) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if w.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", w.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{toRow(tx, w.loc)}}

	resp, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", w.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// Delete removes the row carrying id.
func (w *Writer) Delete(ctx context.Context, id string) error {
	if w.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", w.sheetName)
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, id)
	if row < 0 {
		slog.WarnContext(ctx, "Transaction not found in sheet, nothing to delete", "id", id, "sheet", w.sheetName)
		return nil
	}

	sheetID, err := w.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row),
					EndIndex:        int64(row + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := w.svc.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d from %s: %w", row+1, w.sheetName, err)
	}
	return nil
}

// resolveSheetID looks up the numeric id of the tab once.
func (w *Writer) resolveSheetID(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sheetID != nil {
		return *w.sheetID, nil
	}

	ss, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == w.sheetName {
			id := sh.Properties.SheetId
			w.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", w.sheetName)
}
