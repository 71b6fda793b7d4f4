package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"cardhub/pkg/models"
)

// OwnershipStore is the ownership side of a load cycle. Implementations
// degrade to a non-persisted map instead of failing loads.
type OwnershipStore interface {
	Load(ctx context.Context, key string, legacyKeys []string) models.OwnershipMap
	Save(ctx context.Context, key string, m models.OwnershipMap) error
	Persistent() bool
}

// Snapshot is the whole state one load cycle produced. It is swapped in as
// a unit and never modified afterwards.
type Snapshot struct {
	Generation  string
	LoadedAt    time.Time
	Manifest    models.Manifest
	Catalog     *Catalog
	Ownership   models.OwnershipMap
	Diagnostics []Diagnostic
	Persistent  bool
}

// Options configures a Service.
type Options struct {
	ManifestLocator string
	Fetcher         Fetcher // nil: a LocatorFetcher resolving against the manifest
	Store           OwnershipStore
	Notifier        Notifier
	Logger          *zap.Logger
	Concurrency     int
	Now             func() time.Time
}

// Service runs load cycles and ownership mutations and publishes the
// resulting snapshots atomically.
type Service struct {
	manifest string
	fetcher  Fetcher
	loader   *Loader
	store    OwnershipStore
	notify   Notifier
	logger   *zap.Logger
	now      func() time.Time

	current   atomic.Pointer[Snapshot]
	reloadSeq atomic.Uint64

	mu        sync.Mutex // serializes commits and mutations
	committed uint64
	lastErr   error
	lastErrAt time.Time
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locator := absLocator(opts.ManifestLocator)

	f := opts.Fetcher
	if f == nil {
		f = NewLocatorFetcher(locator)
	}
	loader := NewLoader(f, logger.Named("loader"))
	if opts.Concurrency > 1 {
		loader.Concurrency = opts.Concurrency
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		manifest: locator,
		fetcher:  f,
		loader:   loader,
		store:    opts.Store,
		notify:   opts.Notifier,
		logger:   logger,
		now:      now,
	}
}

func absLocator(locator string) string {
	locator = strings.TrimSpace(locator)
	if locator == "" || isHTTP(locator) {
		return locator
	}
	locator = strings.TrimPrefix(locator, "file://")
	if abs, err := filepath.Abs(locator); err == nil {
		return abs
	}
	return locator
}

// ManifestLocator is the resolved manifest location.
func (s *Service) ManifestLocator() string { return s.manifest }

// Snapshot returns the last committed state, or nil before the first
// successful load.
func (s *Service) Snapshot() *Snapshot { return s.current.Load() }

// LastFailure returns when the most recent reload failed and why. Both are
// zero after a successful reload.
func (s *Service) LastFailure() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErrAt, s.lastErr
}

// Reload runs one full load cycle. Manifest errors are fatal to this cycle
// only; the previous snapshot stays current. Source and identity defects
// end up in the new snapshot's diagnostics.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	seq := s.reloadSeq.Add(1)
	log := s.logger.With(zap.Uint64("cycle", seq))

	man, err := FetchManifest(ctx, s.fetcher, s.manifest)
	if err != nil {
		log.Error("manifest load failed", zap.Error(err))
		s.fail(seq, err)
		return s.current.Load(), err
	}

	results, diags := s.loader.Load(ctx, man)
	diags = append(diags, ValidateIdentities(MergedCards(results), man.Namespaced())...)

	s.mu.Lock()
	if seq < s.committed {
		s.mu.Unlock()
		log.Info("discarding superseded reload")
		return s.current.Load(), ErrSuperseded
	}

	// Ownership is read under the lock so a mutation cannot slip in between
	// the read and the commit.
	own := s.loadOwnership(ctx, man)
	snap := &Snapshot{
		Generation:  ulid.Make().String(),
		LoadedAt:    s.now().UTC(),
		Manifest:    man,
		Catalog:     Build(results, own),
		Ownership:   own,
		Diagnostics: diags,
		Persistent:  s.persistent(),
	}
	s.committed = seq
	s.lastErr = nil
	s.lastErrAt = time.Time{}
	s.current.Store(snap)
	s.mu.Unlock()

	stats := snap.Catalog.Stats()
	log.Info("catalog loaded",
		zap.String("generation", snap.Generation),
		zap.Int("sources", len(snap.Catalog.sources)),
		zap.Int("cards", stats.TotalCards),
		zap.Int("owned", stats.OwnedCards),
		zap.Int("diagnostics", len(diags)),
		zap.Bool("persistent", snap.Persistent),
	)

	s.publish(Event{
		Type:        EventCatalogReloaded,
		Generation:  snap.Generation,
		Stats:       &stats,
		Diagnostics: len(diags),
	})
	return snap, nil
}

func (s *Service) fail(seq uint64, err error) {
	s.mu.Lock()
	if seq >= s.committed {
		// older cycles still in flight must not commit over this failure
		s.committed = seq
		s.lastErr = err
		s.lastErrAt = s.now().UTC()
	}
	s.mu.Unlock()
	s.publish(Event{Type: EventReloadFailed, Error: err.Error()})
}

// RefreshOwnership re-reads the ownership map (after an external
// acquisition wrote it) and recomputes every count.
func (s *Service) RefreshOwnership(ctx context.Context) (*Snapshot, error) {
	return s.mutate(ctx, "", func(*Catalog, models.OwnershipMap) (bool, error) {
		return false, nil
	})
}

// SetCount sets the owned count of one known card. Negative counts are
// rejected.
func (s *Service) SetCount(ctx context.Context, identity string, count int) (*Snapshot, error) {
	if count < 0 {
		return nil, fmt.Errorf("count must be >= 0")
	}
	return s.mutate(ctx, identity, func(cat *Catalog, own models.OwnershipMap) (bool, error) {
		if _, ok := cat.Card(identity); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownCard, identity)
		}
		setCount(own, identity, count)
		return true, nil
	})
}

// Acquire adds delta to the owned count of one known card, flooring at 0.
func (s *Service) Acquire(ctx context.Context, identity string, delta int) (*Snapshot, error) {
	return s.mutate(ctx, identity, func(cat *Catalog, own models.OwnershipMap) (bool, error) {
		if _, ok := cat.Card(identity); !ok {
			return false, fmt.Errorf("%w: %s", ErrUnknownCard, identity)
		}
		setCount(own, identity, own.Count(identity)+delta)
		return true, nil
	})
}

// ReplaceOwnership overwrites the counts of every known card with next.
// Identities the catalog does not know are ignored; entries already stored
// for unknown identities are kept as they are.
func (s *Service) ReplaceOwnership(ctx context.Context, next models.OwnershipMap) (*Snapshot, error) {
	return s.mutate(ctx, "", func(cat *Catalog, own models.OwnershipMap) (bool, error) {
		for id := range own {
			if _, known := cat.Card(id); known {
				delete(own, id)
			}
		}
		for id, n := range next {
			if _, known := cat.Card(id); known {
				setCount(own, id, n)
			}
		}
		return true, nil
	})
}

func setCount(own models.OwnershipMap, identity string, n int) {
	if n <= 0 {
		delete(own, identity)
		return
	}
	own[identity] = n
}

// mutate re-reads the stored map, applies fn, saves when fn reports a
// change, recounts from scratch and swaps the snapshot.
func (s *Service) mutate(ctx context.Context, identity string, fn func(*Catalog, models.OwnershipMap) (bool, error)) (*Snapshot, error) {
	s.mu.Lock()
	cur := s.current.Load()
	if cur == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}

	own := s.loadOwnership(ctx, cur.Manifest)
	changed, err := fn(cur.Catalog, own)
	if err != nil {
		s.mu.Unlock()
		return cur, err
	}
	if changed && s.store != nil {
		if err := s.store.Save(ctx, cur.Manifest.StorageKey, own); err != nil {
			s.mu.Unlock()
			return cur, fmt.Errorf("save ownership: %w", err)
		}
	}

	next := *cur
	next.Ownership = own
	next.Catalog = cur.Catalog.Recount(own)
	next.Persistent = s.persistent()
	s.current.Store(&next)
	s.mu.Unlock()

	stats := next.Catalog.Stats()
	s.publish(Event{
		Type:       EventOwnershipUpdated,
		Generation: next.Generation,
		Stats:      &stats,
		Identity:   identity,
		Count:      own.Count(identity),
	})
	return &next, nil
}

func (s *Service) loadOwnership(ctx context.Context, man models.Manifest) models.OwnershipMap {
	if s.store == nil {
		return models.OwnershipMap{}
	}
	own := s.store.Load(ctx, man.StorageKey, man.LegacyStorageKeys)
	if own == nil {
		own = models.OwnershipMap{}
	}
	return own
}

func (s *Service) persistent() bool {
	return s.store != nil && s.store.Persistent()
}

func (s *Service) publish(ev Event) {
	if s.notify == nil {
		return
	}
	ev.At = s.now().UTC()
	s.notify.BroadcastJSON(ev)
}

// IsFatal reports whether err aborted a load cycle.
func IsFatal(err error) bool {
	return errors.Is(err, ErrManifestFetch) || errors.Is(err, ErrManifestShape)
}
