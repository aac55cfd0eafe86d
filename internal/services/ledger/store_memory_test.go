package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FailedTxIsUndone(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Tx) error {
		_, err := tx.AdjustBalance(ctx, "u1", 50)
		require.NoError(t, err)
		require.NoError(t, tx.Append(ctx, Transaction{ID: 1, Kind: "deposit", Amount: 50, UserID: "u1"}))
		require.NoError(t, tx.SetProfile(ctx, "u1", "n", "d"))

		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = s.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, _, ok := s.Profile("u1")
	assert.False(t, ok)
}

func TestMemoryStore_PanicRollsBackAndReleasesLocks(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx Tx) error {
			_, _ = tx.AdjustBalance(ctx, "u1", 10)
			panic("kaboom")
		})
	})

	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(tx Tx) error {
			_, err := tx.AdjustBalance(ctx, "u1", 1)
			return err
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("user lock still held after panic")
	}

	bal, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bal)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := NewMemoryStore().InTx(ctx, func(Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_QueryOrderAndLimit(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		for _, id := range []ID{3, 1, 2} {
			if err := tx.Append(ctx, Transaction{ID: id, Kind: "deposit", Amount: 1, UserID: "u", BotID: "b"}); err != nil {
				return err
			}
		}
		return nil
	}))

	asc, err := s.Query(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 2}, []ID{asc[0].ID, asc[1].ID})

	desc, err := s.Query(ctx, Filter{Desc: true})
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, ID(3), desc[0].ID)
}

func TestMemoryStore_ReadsWaitForOpenTransactions(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s := NewMemoryStore()

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, "u1", 100); err != nil {
			return err
		}
		return tx.Append(ctx, Transaction{ID: 1, Kind: "deposit", Amount: 100, UserID: "u1", BotID: "b1"})
	}))

	written := make(chan struct{})
	finish := make(chan struct{})
	boom := errors.New("rolled back")

	txDone := make(chan error, 1)
	go func() {
		txDone <- s.InTx(ctx, func(tx Tx) error {
			if _, err := tx.Delete(ctx, 1, time.Now()); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(ctx, "u1", -100); err != nil {
				return err
			}
			close(written)
			<-finish

			return boom
		})
	}()

	<-written

	type snapshot struct {
		bal  int64
		recs []Transaction
	}

	read := make(chan snapshot, 1)
	go func() {
		bal, _ := s.Balance(ctx, "u1")
		recs, _ := s.Query(ctx, Filter{BotID: "b1"})
		read <- snapshot{bal: bal, recs: recs}
	}()

	select {
	case <-read:
		t.Fatal("read observed an open transaction")
	case <-time.After(50 * time.Millisecond):
	}

	close(finish)
	require.ErrorIs(t, <-txDone, boom)

	got := <-read
	assert.Equal(t, int64(100), got.bal)
	require.Len(t, got.recs, 1)
	assert.Equal(t, ID(1), got.recs[0].ID)
}
