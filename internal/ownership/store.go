package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"cardhub/pkg/models"
)

// ErrStorageUnavailable marks the persistent KV as unusable. It is logged,
// never returned from Load.
var ErrStorageUnavailable = errors.New("ownership storage unavailable")

const probeKey = "cardhub.probe"

// Store adapts a KV into OwnershipMap load/save. The first failure of the
// persistent KV switches the store to an in-memory map for the rest of the
// process; it does not retry the persistent KV afterwards. Every value read
// from or written to the persistent KV is mirrored in memory, so the
// fallback starts from the last known state instead of an empty map.
type Store struct {
	primary KV
	memory  *MemoryKV
	failed  atomic.Bool
	logger  *zap.Logger
}

// NewStore wraps primary. A nil primary yields a memory-only store.
func NewStore(primary KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{primary: primary, memory: NewMemoryKV(), logger: logger}
	if primary == nil {
		s.failed.Store(true)
	}
	return s
}

// Open wraps primary and probes it once, so an unusable KV is detected at
// startup rather than on the first user action.
func Open(ctx context.Context, primary KV, logger *zap.Logger) *Store {
	s := NewStore(primary, logger)
	if primary != nil {
		if _, _, err := primary.Get(ctx, probeKey); err != nil {
			s.fallback(err)
		}
	}
	return s
}

// Persistent reports whether writes still reach the persistent KV.
func (s *Store) Persistent() bool { return !s.failed.Load() }

// Load reads the map stored under key. When key holds nothing, the first
// non-empty legacy key is copied into key verbatim and used instead.
// Unreadable values load as an empty map.
func (s *Store) Load(ctx context.Context, key string, legacyKeys []string) models.OwnershipMap {
	raw, ok := s.get(ctx, key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = s.migrate(ctx, key, legacyKeys)
	}
	return Decode(raw)
}

func (s *Store) migrate(ctx context.Context, key string, legacyKeys []string) string {
	for _, lk := range legacyKeys {
		raw, ok := s.get(ctx, lk)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		copied, current := s.setIfEmpty(ctx, key, raw)
		if !copied {
			// someone wrote the primary key meanwhile; theirs wins
			return current
		}
		s.logger.Info("migrated legacy ownership key", zap.String("from", lk), zap.String("to", key))
		return raw
	}
	return ""
}

// Save encodes m and writes it under key.
func (s *Store) Save(ctx context.Context, key string, m models.OwnershipMap) error {
	raw, err := Encode(m)
	if err != nil {
		return err
	}
	return s.set(ctx, key, raw)
}

func (s *Store) kv() KV {
	if s.failed.Load() {
		return s.memory
	}
	return s.primary
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	if s.failed.Load() {
		v, ok, _ := s.memory.Get(ctx, key)
		return v, ok
	}
	v, ok, err := s.primary.Get(ctx, key)
	if err != nil {
		s.fallback(err)
		v, ok, _ = s.memory.Get(ctx, key)
		return v, ok
	}
	if ok {
		_ = s.memory.Set(ctx, key, v)
	}
	return v, ok
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if !s.failed.Load() {
		err := s.primary.Set(ctx, key, value)
		if err == nil {
			return s.memory.Set(ctx, key, value)
		}
		s.fallback(err)
	}
	return s.memory.Set(ctx, key, value)
}

// setIfEmpty writes value only when key is empty. It returns the value key
// holds afterwards when the write did not happen.
func (s *Store) setIfEmpty(ctx context.Context, key, value string) (bool, string) {
	kv := s.kv()
	if cs, ok := kv.(conditionalSetter); ok {
		done, err := cs.SetIfEmpty(ctx, key, value)
		if err == nil {
			if done {
				_ = s.memory.Set(ctx, key, value)
				return true, value
			}
			cur, _ := s.get(ctx, key)
			return false, cur
		}
		s.fallback(err)
		done, _ = s.memory.SetIfEmpty(ctx, key, value)
		if !done {
			cur, _ := s.get(ctx, key)
			return false, cur
		}
		return true, value
	}
	if cur, ok := s.get(ctx, key); ok && strings.TrimSpace(cur) != "" {
		return false, cur
	}
	_ = s.set(ctx, key, value)
	return true, value
}

func (s *Store) fallback(err error) {
	if s.failed.CompareAndSwap(false, true) {
		s.logger.Warn("persistence disabled, using in-memory ownership",
			zap.Error(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)))
	}
}

// Decode parses a stored JSON object of identity -> count. Numbers and
// numeric strings are accepted and truncated; negative, non-numeric and
// non-finite entries are dropped. Anything that is not a JSON object
// decodes to an empty map.
func Decode(raw string) models.OwnershipMap {
	out := models.OwnershipMap{}
	if strings.TrimSpace(raw) == "" {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return out
	}
	for id, v := range obj {
		if n, ok := toCount(v); ok {
			out[id] = n
		}
	}
	return out
}

func toCount(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Encode serializes m with sorted keys.
func Encode(m models.OwnershipMap) (string, error) {
	if m == nil {
		m = models.OwnershipMap{}
	}
	b, err := json.Marshal(map[string]int(m))
	if err != nil {
		return "", fmt.Errorf("encode ownership: %w", err)
	}
	return string(b), nil
}
