package memo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingStore struct{ getErr, setErr error }

func (f failingStore) Get(context.Context, string) (int, bool, error) { return 0, false, f.getErr }
func (f failingStore) Set(context.Context, string, int) error         { return f.setErr }

func TestMemo_HitAfterMiss(t *testing.T) {
	m := New[int]("totals", nil, discardLogger())
	var calls int
	fetch := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, cached, err := m.Do(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, cached)

	v, cached, err = m.Do(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, cached)

	assert.Equal(t, 1, calls, "second call served from the store")
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Size: 1}, m.Stats())
}

func TestMemo_DistinctKeys(t *testing.T) {
	m := New[string]("map", nil, discardLogger())
	for _, k := range []string{"a", "b", "c", "a"} {
		_, _, err := m.Do(context.Background(), k, func(context.Context) (string, error) { return k, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, Stats{Hits: 1, Misses: 3, Size: 3}, m.Stats())
}

func TestMemo_FailuresNotStored(t *testing.T) {
	m := New[int]("categories", nil, discardLogger())
	boom := errors.New("upstream down")

	_, _, err := m.Do(context.Background(), "k", func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, cached, err := m.Do(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, cached, "failed fetch left nothing behind")
	assert.Equal(t, Stats{Hits: 0, Misses: 2, Size: 1}, m.Stats())
}

func TestMemo_StoreGetErrorIsMiss(t *testing.T) {
	m := New[int]("totals", failingStore{getErr: errors.New("conn refused")}, discardLogger())

	v, cached, err := m.Do(context.Background(), "k", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.False(t, cached)
	assert.Equal(t, int64(1), m.Stats().Misses)
}

func TestMemo_StoreSetErrorStillReturnsValue(t *testing.T) {
	m := New[int]("totals", failingStore{setErr: errors.New("read only")}, discardLogger())

	v, _, err := m.Do(context.Background(), "k", func(context.Context) (int, error) { return 5, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, int64(0), m.Stats().Size)
}

func TestMemo_ConcurrentUse(t *testing.T) {
	store := NewMapStore[int]()
	m := New[int]("totals", store, discardLogger())
	var fetches atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"a", "b"}[i%2]
			_, _, err := m.Do(context.Background(), key, func(context.Context) (int, error) {
				fetches.Add(1)
				return i, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s := m.Stats()
	assert.Equal(t, int64(50), s.Hits+s.Misses)
	assert.Equal(t, fetches.Load(), s.Misses)
	assert.GreaterOrEqual(t, s.Size, int64(store.Len()))
	assert.Equal(t, 2, store.Len())
}
