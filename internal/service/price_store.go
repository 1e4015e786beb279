package service

import (
	"sync"
	"time"

	"paper_trade/internal/domain"
	"paper_trade/internal/infra/storage"
	"paper_trade/pkg/fixed"

	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit caps how many observations a history read returns.
const DefaultHistoryLimit = 500

// Observation is one price tick as surfaced to subscribers.
type Observation struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

type pairState struct {
	id   uint
	rate decimal.Decimal
}

// PriceStore holds the current rate per trading pair in memory, backed by
// the persisted observation log. Rate reads never touch the network or the
// DB: executions consume the already-materialized value.
type PriceStore struct {
	mu      sync.RWMutex
	pairs   map[string]pairState // keyed by canonical symbol
	store   *storage.Storage
	onTickM sync.Mutex
	onTick  []func(Observation)
}

// NewPriceStore creates a PriceStore and warms the cache from the DB
func NewPriceStore(store *storage.Storage) (*PriceStore, error) {
	ps := &PriceStore{
		pairs: make(map[string]pairState),
		store: store,
	}

	persisted, err := store.GetAllPairs()
	if err != nil {
		return nil, err
	}
	for _, p := range persisted {
		ps.pairs[p.Symbol()] = pairState{id: p.ID, rate: p.CurrentRate}
	}

	return ps, nil
}

// CurrentRate returns the latest known rate for a symbol.
// Fails with ErrPairNotFound when the pair has never been observed.
func (ps *PriceStore) CurrentRate(symbol string) (decimal.Decimal, error) {
	base, quote := domain.ParseSymbol(symbol)

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	state, ok := ps.pairs[base+"/"+quote]
	if !ok {
		return decimal.Zero, domain.ErrPairNotFound
	}
	return state.rate, nil
}

// Resolve returns the pair id and current rate for a symbol in one read
func (ps *PriceStore) Resolve(symbol string) (uint, decimal.Decimal, error) {
	base, quote := domain.ParseSymbol(symbol)

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	state, ok := ps.pairs[base+"/"+quote]
	if !ok {
		return 0, decimal.Zero, domain.ErrPairNotFound
	}
	return state.id, state.rate, nil
}

// RecordObservation appends a price tick and updates the pair's current rate.
// This is the only path that mutates a rate. The persisted rate update and
// the observation append commit together; on any storage error the in-memory
// cache is left untouched and the last known rate stays authoritative.
// Feed prices are truncated to quantity precision on the way in, so the
// cache, the observation log and every trade price carry at most 8
// fraction digits.
func (ps *PriceStore) RecordObservation(symbol string, price decimal.Decimal, ts time.Time) error {
	base, quote := domain.ParseSymbol(symbol)
	price = fixed.Quantity(price)

	pair, err := ps.store.GetOrCreatePair(base, quote)
	if err != nil {
		return err
	}
	if err := ps.store.RecordObservation(pair.ID, price, ts); err != nil {
		return err
	}

	ps.mu.Lock()
	ps.pairs[pair.Symbol()] = pairState{id: pair.ID, rate: price}
	ps.mu.Unlock()

	ps.notify(Observation{Symbol: pair.Symbol(), Price: price, Timestamp: ts})
	return nil
}

// History returns up to limit observations for a symbol, oldest first.
// A non-positive or oversized limit falls back to DefaultHistoryLimit.
func (ps *PriceStore) History(symbol string, limit int) ([]domain.PriceObservation, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	id, _, err := ps.Resolve(symbol)
	if err != nil {
		return nil, err
	}
	return ps.store.History(id, limit)
}

// Symbols returns all known symbols with their current rates
func (ps *PriceStore) Symbols() []Observation {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	result := make([]Observation, 0, len(ps.pairs))
	for symbol, state := range ps.pairs {
		result = append(result, Observation{Symbol: symbol, Price: state.rate})
	}
	return result
}

// OnObservation registers a callback invoked after every recorded tick.
// Callbacks run on the recorder's goroutine and must not block.
func (ps *PriceStore) OnObservation(fn func(Observation)) {
	ps.onTickM.Lock()
	defer ps.onTickM.Unlock()
	ps.onTick = append(ps.onTick, fn)
}

func (ps *PriceStore) notify(obs Observation) {
	ps.onTickM.Lock()
	callbacks := make([]func(Observation), len(ps.onTick))
	copy(callbacks, ps.onTick)
	ps.onTickM.Unlock()

	for _, fn := range callbacks {
		fn(obs)
	}
}
