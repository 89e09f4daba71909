// Package sheets defines the spreadsheet mirror ports.
package sheets

import (
	"context"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// TransactionDeleter removes the mirrored row of a transaction.
	// Deleting an id that was never mirrored is not an error.
	TransactionDeleter interface {
		Delete(ctx context.Context, id string) error
	}
)

// Header is the column layout every writer uses.
var Header = []string{"Tanggal", "Waktu", "Tipe", "Kategori", "Keterangan", "Jumlah", "Oleh", "ID"}

// IDColumn is the zero-based index of the transaction id in Header.
const IDColumn = 7
