package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pumpspares/src_project/internal/wizard"
)

var ErrWizardNotFound = errors.New("wizard session not found")

type storeEntry struct {
	w     *wizard.Wizard
	owner string
}

// Store keeps the in-memory wizards, one owner each. Idle ones expire after ttl.
type Store struct {
	calc wizard.Calculator
	ttl  time.Duration
	opts []wizard.Option

	mu    sync.Mutex
	items map[string]storeEntry
}

func NewStore(calc wizard.Calculator, ttl time.Duration, opts ...wizard.Option) *Store {
	return &Store{
		calc:  calc,
		ttl:   ttl,
		opts:  opts,
		items: make(map[string]storeEntry),
	}
}

func (s *Store) Create(owner string) *wizard.Wizard {
	w := wizard.New(uuid.NewString(), s.calc, s.opts...)
	s.mu.Lock()
	s.items[w.ID()] = storeEntry{w: w, owner: owner}
	s.mu.Unlock()
	return w
}

// Get returns the wizard only to its owner; others see ErrWizardNotFound.
func (s *Store) Get(id, owner string) (*wizard.Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.owner != owner {
		return nil, ErrWizardNotFound
	}
	return e.w, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// DropOwner closes every wizard of owner (logout).
func (s *Store) DropOwner(owner string) int {
	return s.removeWhere(func(e storeEntry) bool { return e.owner == owner })
}

// Sweep closes wizards idle for longer than ttl. ttl <= 0 disables expiry.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	return s.removeWhere(func(e storeEntry) bool { return now.Sub(e.w.LastTouched()) > s.ttl })
}

func (s *Store) CloseAll() int {
	return s.removeWhere(func(storeEntry) bool { return true })
}

func (s *Store) removeWhere(match func(storeEntry) bool) int {
	s.mu.Lock()
	var gone []*wizard.Wizard
	for id, e := range s.items {
		if match(e) {
			gone = append(gone, e.w)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, w := range gone {
		w.Close()
	}
	return len(gone)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if every <= 0 {
		every = s.ttl / 2
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 {
				log.Infof("wizard janitor: expired %d idle sessions", n)
			}
		}
	}
}
