package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

func sampleTx() core.Transaction {
	return core.Transaction{
		ID:          "tx-1",
		Type:        core.Expense,
		Amount:      50000,
		Description: "jajan bakso",
		Category:    "Food & Beverage",
		Author:      "Budi",
		Timestamp:   time.Date(2025, 3, 12, 16, 30, 0, 0, time.UTC),
	}
}

func TestToRow(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	row := toRow(sampleTx(), jakarta)

	want := []any{"2025-03-12", "23:30:00", "Pengeluaran", "Food & Beverage", "jajan bakso", int64(50000), "Budi", "tx-1"}
	if len(row) != len(want) {
		t.Fatalf("len(row) = %d, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}

	tx := sampleTx()
	tx.Category = ""
	if got := toRow(tx, time.UTC)[3]; got != core.UncategorizedLabel {
		t.Errorf("empty category rendered as %v", got)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"Tanggal", "Waktu", "Tipe", "Kategori", "Keterangan", "Jumlah", "Oleh", "ID"},
		{"2025-03-12", "08:00:00", "Pemasukan", "Gaji", "gaji", "500000", "Budi", "a"},
		{"short row"},
		{"2025-03-12", "09:00:00", "Pengeluaran", "F&B", "jajan", "25000", "Budi", " b "},
	}
	tests := []struct {
		id   string
		want int
	}{
		{"a", 1},
		{"b", 3},
		{"missing", -1},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestNewWriter_MissingConfig(t *testing.T) {
	if _, err := NewWriter(context.Background(), Options{}); err == nil {
		t.Error("expected error for missing spreadsheet id")
	}
	_, err := NewWriter(context.Background(), Options{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected credentials error, got %v", err)
	}
	_, err = NewWriter(context.Background(), Options{SpreadsheetID: "sid", CredentialsFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected file error, got %v", err)
	}
}

// fakeSheets records requests made against a minimal Sheets API.
type fakeSheets struct {
	mu       sync.Mutex
	appended [][]any
	rows     [][]any
	deleted  []int64
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		f.appended = append(f.appended, body.Values...)
		io.WriteString(w, `{"updates":{"updatedRange":"Transaksi!A2:H2"}}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var body struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						StartIndex int64 `json:"startIndex"`
					} `json:"range"`
				} `json:"deleteDimension"`
			} `json:"requests"`
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		for _, req := range body.Requests {
			f.deleted = append(f.deleted, req.DeleteDimension.Range.StartIndex)
		}
		io.WriteString(w, `{}`)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
	case r.Method == http.MethodGet:
		io.WriteString(w, `{"sheets":[{"properties":{"sheetId":0,"title":"Other"}},{"properties":{"sheetId":42,"title":"Transaksi"}}]}`)
	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func newTestWriter(t *testing.T, fake *fakeSheets) *Writer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	w, err := NewWriter(context.Background(), Options{
		SpreadsheetID: "sid",
		SheetName:     "Transaksi",
		Location:      time.UTC,
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithoutAuthentication(),
		},
	})
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	return w
}

func TestWriter_Append(t *testing.T) {
	fake := &fakeSheets{}
	w := newTestWriter(t, fake)

	ref, err := w.Append(context.Background(), sampleTx())
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "Transaksi!A2:H2" {
		t.Errorf("ref = %q", ref)
	}
	if len(fake.appended) != 1 || len(fake.appended[0]) != 8 {
		t.Fatalf("appended = %v", fake.appended)
	}
	if fake.appended[0][7] != "tx-1" {
		t.Errorf("id column = %v", fake.appended[0][7])
	}
}

func TestWriter_AppendRejectsInvalid(t *testing.T) {
	fake := &fakeSheets{}
	w := newTestWriter(t, fake)

	tx := sampleTx()
	tx.Amount = 0
	if _, err := w.Append(context.Background(), tx); err == nil {
		t.Error("expected validation error")
	}
	if len(fake.appended) != 0 {
		t.Error("invalid transaction must not reach the API")
	}
}

func TestWriter_Delete(t *testing.T) {
	fake := &fakeSheets{rows: [][]any{
		{"Tanggal", "Waktu", "Tipe", "Kategori", "Keterangan", "Jumlah", "Oleh", "ID"},
		{"2025-03-12", "08:00:00", "Pemasukan", "Gaji", "gaji", "500000", "Budi", "tx-0"},
		{"2025-03-12", "09:00:00", "Pengeluaran", "F&B", "jajan", "25000", "Budi", "tx-1"},
	}}
	w := newTestWriter(t, fake)

	if err := w.Delete(context.Background(), "tx-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != 2 {
		t.Errorf("deleted = %v, want [2]", fake.deleted)
	}
	if w.sheetID == nil || *w.sheetID != 42 {
		t.Errorf("sheet id not resolved to 42")
	}

	if err := w.Delete(context.Background(), "unknown"); err != nil {
		t.Errorf("Delete(unknown) error = %v", err)
	}
	if len(fake.deleted) != 1 {
		t.Error("unknown id must not delete a row")
	}
}
