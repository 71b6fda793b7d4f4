package catalog

import (
	"context"
	"errors"
	"sync"

	"cardhub/pkg/models"
)

var errNotFound = errors.New("not found")

// mapFetcher serves documents from memory, keyed by locator.
type mapFetcher struct {
	mu   sync.Mutex
	docs map[string]string
	errs map[string]error
	hits map[string]int
}

func newMapFetcher(docs map[string]string) *mapFetcher {
	return &mapFetcher{docs: docs, errs: map[string]error{}, hits: map[string]int{}}
}

func (f *mapFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[locator]++
	if err, ok := f.errs[locator]; ok {
		return nil, err
	}
	doc, ok := f.docs[locator]
	if !ok {
		return nil, errNotFound
	}
	return []byte(doc), nil
}

func (f *mapFetcher) set(locator, doc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[locator] = doc
	delete(f.errs, locator)
}

func (f *mapFetcher) fail(locator string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[locator] = err
}

// memStore is an OwnershipStore over a plain map.
type memStore struct {
	mu    sync.Mutex
	data  map[string]models.OwnershipMap
	saves int
}

func newMemStore() *memStore {
	return &memStore{data: map[string]models.OwnershipMap{}}
}

func (s *memStore) Load(_ context.Context, key string, _ []string) models.OwnershipMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key].Clone()
}

func (s *memStore) Save(_ context.Context, key string, m models.OwnershipMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = m.Clone()
	s.saves++
	return nil
}

func (s *memStore) Persistent() bool { return false }

func (s *memStore) put(key string, m models.OwnershipMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = m
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) BroadcastJSON(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := v.(Event); ok {
		r.events = append(r.events, ev)
	}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func card(id, source string, rarity int, name string) models.Card {
	return models.Card{Identity: id, SourceID: source, Rarity: rarity, Name: name, Weight: 1}
}

func result(src string, cards ...models.Card) SourceResult {
	return SourceResult{Source: models.Source{ID: src, Title: src}, Cards: cards}
}
