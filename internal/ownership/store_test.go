package ownership

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"cardhub/pkg/models"
)

var errDisk = errors.New("disk I/O error")

type failingKV struct {
	calls atomic.Int32
}

func (f *failingKV) Get(context.Context, string) (string, bool, error) {
	f.calls.Add(1)
	return "", false, errDisk
}

func (f *failingKV) Set(context.Context, string, string) error {
	f.calls.Add(1)
	return errDisk
}

// plainKV hides MemoryKV's SetIfEmpty.
type plainKV struct{ inner *MemoryKV }

func (p plainKV) Get(ctx context.Context, key string) (string, bool, error) {
	return p.inner.Get(ctx, key)
}

func (p plainKV) Set(ctx context.Context, key, value string) error {
	return p.inner.Set(ctx, key, value)
}

// flakyKV works until broken is set.
type flakyKV struct {
	inner  *MemoryKV
	broken atomic.Bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.broken.Load() {
		return "", false, errDisk
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.broken.Load() {
		return errDisk
	}
	return f.inner.Set(ctx, key, value)
}

func TestDecode(t *testing.T) {
	cases := map[string]models.OwnershipMap{
		``:                       {},
		`not json`:               {},
		`[1,2]`:                  {},
		`null`:                   {},
		`{"a:1": 2}`:             {"a:1": 2},
		`{"a:1": 2.9}`:           {"a:1": 2},
		`{"a:1": "3"}`:           {"a:1": 3},
		`{"a:1": " 4 "}`:         {"a:1": 4},
		`{"a:1": -1, "a:2": 1}`:  {"a:2": 1},
		`{"a:1": "x", "a:2": 0}`: {"a:2": 0},
		`{"a:1": null}`:          {},
		`{"a:1": true}`:          {},
		`{"a:1": {"n": 1}}`:      {},
	}
	for raw, want := range cases {
		assert.Equal(t, want, Decode(raw), "decode %q", raw)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := Encode(models.OwnershipMap{"b:1": 1, "a:1": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a:1":2,"b:1":1}`, raw)
	assert.Equal(t, models.OwnershipMap{"a:1": 2, "b:1": 1}, Decode(raw))

	raw, err = Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, raw)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), nil)
	assert.True(t, s.Persistent())

	assert.Empty(t, s.Load(ctx, "k", nil))
	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 3}))
	assert.Equal(t, models.OwnershipMap{"a:1": 3}, s.Load(ctx, "k", nil))
}

func TestStore_NilPrimaryIsMemoryOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	assert.False(t, s.Persistent())
	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 1}))
	assert.Equal(t, 1, s.Load(ctx, "k", nil).Count("a:1"))
}

func TestStore_FallbackIsPermanent(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	kv := &failingKV{}

	s := Open(ctx, kv, zap.New(core))
	assert.False(t, s.Persistent())
	assert.EqualValues(t, 1, kv.calls.Load(), "only the startup probe reaches the broken KV")

	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 2}))
	assert.Equal(t, models.OwnershipMap{"a:1": 2}, s.Load(ctx, "k", nil))
	assert.EqualValues(t, 1, kv.calls.Load())

	entries := logs.FilterMessage("persistence disabled, using in-memory ownership").All()
	require.Len(t, entries, 1)
}

func TestStore_FallbackOnFirstUse(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	kv := &failingKV{}
	s := NewStore(kv, zap.New(core))

	assert.Empty(t, s.Load(ctx, "k", []string{"old"}))
	assert.False(t, s.Persistent())
	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 1}))
	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 2}))
	assert.EqualValues(t, 1, kv.calls.Load())
	assert.Equal(t, 1, logs.Len())
}

func TestStore_FallbackKeepsLastKnownCounts(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{inner: NewMemoryKV()}
	s := Open(ctx, kv, nil)

	require.NoError(t, s.Save(ctx, "k", models.OwnershipMap{"a:1": 3, "a:2": 1}))
	require.True(t, s.Persistent())

	kv.broken.Store(true)
	assert.Equal(t, models.OwnershipMap{"a:1": 3, "a:2": 1}, s.Load(ctx, "k", nil))
	assert.False(t, s.Persistent())

	m := s.Load(ctx, "k", nil)
	m["a:3"] = 1
	require.NoError(t, s.Save(ctx, "k", m))
	assert.Equal(t, models.OwnershipMap{"a:1": 3, "a:2": 1, "a:3": 1}, s.Load(ctx, "k", nil))
}

func TestStore_FallbackKeepsValueReadBeforeFailure(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryKV()
	require.NoError(t, inner.Set(ctx, "k", `{"a:1":2}`))
	kv := &flakyKV{inner: inner}
	s := NewStore(kv, nil)

	assert.Equal(t, 2, s.Load(ctx, "k", nil).Count("a:1"))

	kv.broken.Store(true)
	require.NoError(t, s.Save(ctx, "other", models.OwnershipMap{}))
	assert.False(t, s.Persistent())
	assert.Equal(t, 2, s.Load(ctx, "k", nil).Count("a:1"))
}

func TestStore_LegacyMigration(t *testing.T) {
	for name, newKV := range map[string]func() KV{
		"conditional": func() KV { return NewMemoryKV() },
		"plain":       func() KV { return plainKV{inner: NewMemoryKV()} },
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV()
			require.NoError(t, kv.Set(ctx, "v0", `{"a:1": 9}`))
			require.NoError(t, kv.Set(ctx, "v1", `{"a:1": 1, "a:2": 2}`))
			s := NewStore(kv, nil)

			got := s.Load(ctx, "v2", []string{"missing", "v1", "v0"})
			assert.Equal(t, models.OwnershipMap{"a:1": 1, "a:2": 2}, got)

			raw, ok, err := kv.Get(ctx, "v2")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `{"a:1": 1, "a:2": 2}`, raw, "legacy value is copied verbatim")

			// the primary key now wins over legacy keys
			require.NoError(t, s.Save(ctx, "v2", models.OwnershipMap{"a:3": 1}))
			assert.Equal(t, models.OwnershipMap{"a:3": 1}, s.Load(ctx, "v2", []string{"v1"}))
		})
	}
}

func TestStore_MigrationNeverOverwritesPrimary(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "v2", `{"a:5": 5}`))
	require.NoError(t, kv.Set(ctx, "v1", `{"a:1": 1}`))

	got := NewStore(kv, nil).Load(ctx, "v2", []string{"v1"})
	assert.Equal(t, models.OwnershipMap{"a:5": 5}, got)
}

func TestMemoryKV_SetIfEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	ok, err := kv.SetIfEmpty(ctx, "k", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = kv.SetIfEmpty(ctx, "k", "b")
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "  "))
	ok, _ = kv.SetIfEmpty(ctx, "k", "c")
	assert.True(t, ok)

	v, _, _ := kv.Get(ctx, "k")
	assert.Equal(t, "c", v)
}
