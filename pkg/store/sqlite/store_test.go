package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/store"
)

func openTestPersister(t *testing.T) (*Persister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.db")
	p, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, path
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestPersister_StoreAndLoad(t *testing.T) {
	p, _ := openTestPersister(t)
	ctx := context.Background()

	got, err := p.Load(ctx, "users")
	require.NoError(t, err)
	assert.Empty(t, got)

	want := []collection.Record{
		{"id": "b", "name": "Bob"},
		{"id": "a", "name": "Alice", "meta": map[string]any{"admin": true}},
	}
	require.NoError(t, p.Store(ctx, "users", want))
	require.NoError(t, p.Store(ctx, "orders", []collection.Record{{"id": "o1"}}))

	got, err = p.Load(ctx, "users")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, p.Store(ctx, "users", want[:1]))
	got, err = p.Load(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, got, 1, "store replaces the previous sequence")

	names, err := p.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
}

func TestPersister_CancelledContext(t *testing.T) {
	p, _ := openTestPersister(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Store(ctx, "users", nil), context.Canceled)
	_, err := p.Load(ctx, "users")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersister_BacksPersistentStore(t *testing.T) {
	p, path := openTestPersister(t)
	ctx := context.Background()
	cfg := collection.MustNew("users")

	s, err := store.OpenPersistent(ctx, cfg, p)
	require.NoError(t, err)
	require.NoError(t, s.SaveAll([]collection.Record{{"id": 1}, {"id": 2}}))
	require.NoError(t, s.Remove(collection.Record{"id": 1}))
	require.NoError(t, s.Close())

	p2, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p2.Close() })
	reopened, err := store.OpenPersistent(ctx, cfg, p2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
	_, err = reopened.Read(2)
	assert.NoError(t, err)
}
