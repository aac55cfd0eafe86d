// Package memory keeps credentials in process memory. It backs tests and the
// memory storage driver.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fastprodman/botledger/internal/repos/credentials"
)

var _ credentials.Credentials = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	items map[string]credentials.Credential
}

func New() *Store {
	return &Store{items: make(map[string]credentials.Credential)}
}

func (s *Store) Create(_ context.Context, c credentials.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; ok {
		return fmt.Errorf("create credential: id %q already exists", c.ID)
	}

	if c.Role == credentials.RoleBot {
		for id, old := range s.items {
			if old.Role == credentials.RoleBot && old.BotID == c.BotID && old.Active() {
				at := c.CreatedAt
				old.RevokedAt = &at
				s.items[id] = old
			}
		}
	}

	s.items[c.ID] = c

	return nil
}

func (s *Store) Get(_ context.Context, id string) (credentials.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return credentials.Credential{}, credentials.ErrNotFound
	}

	return c, nil
}

func (s *Store) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok {
		return credentials.ErrNotFound
	}

	if c.Active() {
		c.RevokedAt = &at
		s.items[id] = c
	}

	return nil
}

func (s *Store) CountActive(_ context.Context, role credentials.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.items {
		if c.Role == role && c.Active() {
			n++
		}
	}

	return n, nil
}
