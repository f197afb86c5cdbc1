package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend interface {
	Commit(ctx context.Context, election string, records ...Record) error
	Get(ctx context.Context, election, name string, private bool) ([]byte, error)
	Elections(ctx context.Context) ([]string, error)
}

func backends(t *testing.T) map[string]backend {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "eos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]backend{
		"memory": NewMemory(),
		"bolt":   b,
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Commit(ctx, "e1",
				Record{Key: "election", Value: []byte("public")},
				Record{Key: "election", Value: []byte("secret"), Private: true},
			))

			v, err := s.Get(ctx, "e1", "election", false)
			require.NoError(t, err)
			assert.Equal(t, []byte("public"), v)

			v, err = s.Get(ctx, "e1", "election", true)
			require.NoError(t, err)
			assert.Equal(t, []byte("secret"), v)

			_, err = s.Get(ctx, "e1", "missing", false)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, "e2", "election", false)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Commit(ctx, "e1", Record{Key: "election", Value: []byte("updated")}))
			v, err = s.Get(ctx, "e1", "election", false)
			require.NoError(t, err)
			assert.Equal(t, []byte("updated"), v)

			ids, err := s.Elections(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"e1"}, ids)
		})
	}
}

func TestStoreAtomic(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Commit(ctx, "e1",
				Record{Key: "a", Value: []byte("1")},
				Record{Key: "", Value: []byte("2")},
			)
			require.Error(t, err)
			_, err = s.Get(ctx, "e1", "a", false)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, s.Commit(ctx, "e1", Record{Key: "a"}), context.Canceled)
		})
	}
}

func TestBoltReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "eos.db")
	b, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Commit(ctx, "e1", Record{Key: "k", Value: []byte("v"), Private: true}))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()
	v, err := b.Get(ctx, "e1", "k", true)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
