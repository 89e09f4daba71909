package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	ports "github.com/nanmax/wa-finance-bot-sub000/internal/sheets"
)

// toRow renders tx in the ports.Header layout. Date and time are local to
// loc so the sheet reads like the chat replies.
func toRow(tx core.Transaction, loc *time.Location) []any {
	ts := tx.Timestamp.In(loc)
	return []any{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		tx.Type.Label(),
		tx.CategoryOrDefault(),
		tx.Description,
		tx.Amount,
		tx.Author,
		tx.ID,
	}
}

// findRow returns the zero-based row index whose id column equals id, or -1.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) <= ports.IDColumn {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[ports.IDColumn])) == id {
			return i
		}
	}
	return -1
}
