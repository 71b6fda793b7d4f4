package ownership

import (
	"context"
	"strings"
	"sync"
)

// KV is the persistent collaborator the store is built on: a string value
// per key. ok is false when the key has never been set.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// conditionalSetter is implemented by KVs that can write a key only when it
// holds no value yet. The legacy migration uses it so a concurrent writer's
// primary value is never overwritten.
type conditionalSetter interface {
	SetIfEmpty(ctx context.Context, key, value string) (bool, error)
}

// MemoryKV is the in-process, non-persisted fallback.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *MemoryKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	kv.m[key] = value
	kv.mu.Unlock()
	return nil
}

func (kv *MemoryKV) SetIfEmpty(_ context.Context, key, value string) (bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if cur, ok := kv.m[key]; ok && strings.TrimSpace(cur) != "" {
		return false, nil
	}
	kv.m[key] = value
	return true, nil
}
