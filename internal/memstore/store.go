// Package memstore keeps the whole data set in process memory. Units of work
// are serialized by one mutex and run against a copy of the state that is
// swapped in only on success, so a failed InTx leaves nothing behind.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
)

type state struct {
	seq          int64
	clients      map[string]orders.Client
	products     map[string]orders.Product
	batches      map[string]orders.Batch
	reservations map[string]orders.Reservation
	scrap        []orders.ScrapEntry
	orders       map[string]orders.Order // without Items
	items        map[string]orders.LineItem
	itemOrder    map[string][]string // order id -> item ids, insertion order
	printers     map[string]orders.Printer
	jobs         map[string]orders.PrintJob
}

func newState() *state {
	return &state{
		clients:      map[string]orders.Client{},
		products:     map[string]orders.Product{},
		batches:      map[string]orders.Batch{},
		reservations: map[string]orders.Reservation{},
		orders:       map[string]orders.Order{},
		items:        map[string]orders.LineItem{},
		itemOrder:    map[string][]string{},
		printers:     map[string]orders.Printer{},
		jobs:         map[string]orders.PrintJob{},
	}
}

// clone is shallow per record: records are value types and slices inside them
// are never mutated in place.
func (s *state) clone() *state {
	return &state{
		seq:          s.seq,
		clients:      maps.Clone(s.clients),
		products:     maps.Clone(s.products),
		batches:      maps.Clone(s.batches),
		reservations: maps.Clone(s.reservations),
		scrap:        slices.Clone(s.scrap),
		orders:       maps.Clone(s.orders),
		items:        maps.Clone(s.items),
		itemOrder:    maps.Clone(s.itemOrder),
		printers:     maps.Clone(s.printers),
		jobs:         maps.Clone(s.jobs),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()
	return fn(ctx, &tx{st: snap, readOnly: true})
}

var _ orders.Store = (*Store)(nil)

type tx struct {
	st       *state
	readOnly bool
}

var _ orders.Tx = (*tx)(nil)

func (t *tx) next() int64 {
	t.st.seq++
	return t.st.seq
}
