package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the ledger in process memory, for tests and the memory
// storage driver. A transaction holds the lock of every user it touches until
// it ends; failed transactions are undone from a journal. Reads wait for open
// transactions to finish, so they never observe writes that may be undone.
type MemoryStore struct {
	// commit is shared by transactions and held exclusively by readers.
	commit     sync.RWMutex
	mu         sync.RWMutex
	balances   map[string]int64
	profiles   map[string][2]string
	records    map[ID]Transaction
	tombstones map[ID]tombstone
	userLocks  map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:   make(map[string]int64),
		profiles:   make(map[string][2]string),
		records:    make(map[ID]Transaction),
		tombstones: make(map[ID]tombstone),
		userLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) (err error) {
	s.commit.RLock()
	defer s.commit.RUnlock()

	tx := &memTx{store: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	err = ctx.Err()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	err = fn(tx)
	if err != nil {
		tx.rollback()
		return err
	}

	return nil
}

func (s *MemoryStore) Get(_ context.Context, id ID) (Transaction, error) {
	s.commit.Lock()
	defer s.commit.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}

	return rec, nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Transaction, error) {
	s.commit.Lock()
	defer s.commit.Unlock()

	s.mu.RLock()
	out := make([]Transaction, 0)
	for _, rec := range s.records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if f.Desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})

	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *MemoryStore) Balance(_ context.Context, userID string) (int64, error) {
	s.commit.Lock()
	defer s.commit.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[userID], nil
}

func (s *MemoryStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.userLocks[userID]
	if !ok {
		l = new(sync.Mutex)
		s.userLocks[userID] = l
	}

	return l
}

type tombstone struct {
	rec Transaction
	at  time.Time
}

type memTx struct {
	store *MemoryStore
	held  map[string]*sync.Mutex
	undo  []func()
}

func (t *memTx) lock(userID string) {
	if _, ok := t.held[userID]; ok {
		return
	}

	l := t.store.userLock(userID)
	l.Lock()
	t.held[userID] = l
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}

// rollback runs the journal newest first.
func (t *memTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.lock(userID)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.balances[userID]
	if delta > 0 && prev > math.MaxInt64-delta {
		return 0, ErrBalanceOverflow
	}

	next := prev + delta
	if next < 0 {
		return 0, ErrInsufficientFunds
	}
	if !existed && delta < 0 {
		return 0, ErrInsufficientFunds
	}

	s.balances[userID] = next
	t.undo = append(t.undo, func() {
		if existed {
			s.balances[userID] = prev
		} else {
			delete(s.balances, userID)
		}
	})

	return next, nil
}

func (t *memTx) Append(ctx context.Context, rec Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	_, live := s.records[rec.ID]
	_, reversed := s.tombstones[rec.ID]
	if live || reversed {
		return ErrDuplicateID
	}

	s.records[rec.ID] = rec
	t.undo = append(t.undo, func() { delete(s.records, rec.ID) })

	return nil
}

func (t *memTx) Delete(ctx context.Context, id ID, at time.Time) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}

	s := t.store

	s.mu.RLock()
	rec, ok := s.records[id]
	if !ok {
		var ts tombstone
		ts, ok = s.tombstones[id]
		rec = ts.rec
	}
	s.mu.RUnlock()

	if !ok {
		return Transaction{}, ErrNotFound
	}

	// Writers of one user serialize on its lock; re-check once held so a
	// concurrent reversal that rolled back is not mistaken for a finished one.
	t.lock(rec.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok = s.records[id]
	if !ok {
		if _, reversed := s.tombstones[id]; reversed {
			return Transaction{}, ErrAlreadyReversed
		}
		return Transaction{}, ErrNotFound
	}

	delete(s.records, id)
	s.tombstones[id] = tombstone{rec: rec, at: at}
	t.undo = append(t.undo, func() {
		delete(s.tombstones, id)
		s.records[id] = rec
	})

	return rec, nil
}

func (t *memTx) SetProfile(ctx context.Context, userID, name, discriminator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.lock(userID)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[userID]; !ok {
		return nil
	}

	prev, had := s.profiles[userID]
	s.profiles[userID] = [2]string{name, discriminator}
	t.undo = append(t.undo, func() {
		if had {
			s.profiles[userID] = prev
		} else {
			delete(s.profiles, userID)
		}
	})

	return nil
}

// Profile returns the display metadata recorded for userID.
func (s *MemoryStore) Profile(userID string) (name, discriminator string, ok bool) {
	s.commit.Lock()
	defer s.commit.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]

	return p[0], p[1], ok
}
