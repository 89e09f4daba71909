// Package storagetest holds the behavioral tests shared by every
// TransactionStore implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/storage"
)

// Transaction returns a valid transaction at the given offset from base.
func Transaction(typ core.TransactionType, amount int64, author string, at time.Time) core.Transaction {
	return core.Transaction{
		Type:            typ,
		Amount:          amount,
		Description:     "test " + string(typ),
		Category:        "Test",
		Author:          author,
		Timestamp:       at,
		OriginalMessage: "raw",
	}
}

// Run exercises the TransactionStore contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.TransactionStore) {
	base := time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)

	t.Run("save assigns id and get returns it", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, Transaction(core.Expense, 50000, "Budi", base))
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, got.ID)
		assert.Equal(t, core.Expense, got.Type)
		assert.Equal(t, int64(50000), got.Amount)
		assert.Equal(t, "Budi", got.Author)
		assert.Equal(t, "raw", got.OriginalMessage)
		assert.True(t, base.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, base)
	})

	t.Run("save keeps a caller supplied id", func(t *testing.T) {
		s := newStore(t)
		tx := Transaction(core.Income, 1, "Budi", base)
		tx.ID = "fixed-id"

		saved, err := s.Save(context.Background(), tx)
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", saved.ID)
	})

	t.Run("save rejects invalid transactions", func(t *testing.T) {
		s := newStore(t)
		bad := Transaction(core.Expense, 0, "Budi", base)

		_, err := s.Save(context.Background(), bad)
		assert.ErrorIs(t, err, core.ErrInvalidAmount)
	})

	t.Run("get unknown id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "missing")
		assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)
	})

	t.Run("list orders and filters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, tx := range []core.Transaction{
			Transaction(core.Expense, 3, "Sari", base.Add(2*time.Hour)),
			Transaction(core.Income, 1, "Budi", base),
			Transaction(core.Expense, 2, "Budi", base.Add(time.Hour)),
		} {
			_, err := s.Save(ctx, tx)
			require.NoError(t, err)
		}

		all, err := s.List(ctx, storage.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Amount, all[1].Amount, all[2].Amount})

		expenses, err := s.List(ctx, storage.ListOptions{Type: core.Expense})
		require.NoError(t, err)
		assert.Len(t, expenses, 2)

		budi, err := s.List(ctx, storage.ListOptions{Author: "Budi"})
		require.NoError(t, err)
		assert.Len(t, budi, 2)

		window, err := s.List(ctx, storage.ListOptions{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)})
		require.NoError(t, err)
		require.Len(t, window, 1)
		assert.Equal(t, int64(2), window[0].Amount)

		limited, err := s.List(ctx, storage.ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, Transaction(core.Expense, 10, "Budi", base))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, saved.ID))
		_, err = s.Get(ctx, saved.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, saved.ID), core.ErrNotFound)
	})

	t.Run("delete all and replace all", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := s.Save(ctx, Transaction(core.Expense, int64(i+1), "Budi", base.Add(time.Duration(i)*time.Minute)))
			require.NoError(t, err)
		}

		restored := []core.Transaction{
			Transaction(core.Income, 100, "Sari", base),
			Transaction(core.Expense, 40, "Sari", base.Add(time.Minute)),
		}
		restored[0].ID = "keep-me"
		require.NoError(t, s.ReplaceAll(ctx, restored))

		all, err := s.List(ctx, storage.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "keep-me", all[0].ID)
		assert.NotEmpty(t, all[1].ID)

		n, err := s.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		all, err = s.List(ctx, storage.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("replace all rejects invalid input and keeps data", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Save(ctx, Transaction(core.Expense, 10, "Budi", base))
		require.NoError(t, err)

		err = s.ReplaceAll(ctx, []core.Transaction{Transaction(core.Expense, -1, "Budi", base)})
		require.Error(t, err)

		all, err := s.List(ctx, storage.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("replace all rejects duplicate ids and keeps data", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Save(ctx, Transaction(core.Expense, 10, "Budi", base))
		require.NoError(t, err)

		first := Transaction(core.Expense, 20, "Budi", base)
		first.ID = "dup"
		second := Transaction(core.Income, 30, "Sari", base.Add(time.Hour))
		second.ID = "dup"
		require.Error(t, s.ReplaceAll(ctx, []core.Transaction{first, second}))

		all, err := s.List(ctx, storage.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(10), all[0].Amount)
	})

	t.Run("last by author", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.LastByAuthor(ctx, "Budi")
		assert.ErrorIs(t, err, core.ErrNotFound)

		_, err = s.Save(ctx, Transaction(core.Expense, 1, "Budi", base))
		require.NoError(t, err)
		latest, err := s.Save(ctx, Transaction(core.Expense, 2, "Budi", base.Add(time.Hour)))
		require.NoError(t, err)
		_, err = s.Save(ctx, Transaction(core.Expense, 3, "Sari", base.Add(2*time.Hour)))
		require.NoError(t, err)

		got, err := s.LastByAuthor(ctx, "Budi")
		require.NoError(t, err)
		assert.Equal(t, latest.ID, got.ID)
	})
}
