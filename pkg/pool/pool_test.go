package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelize(t *testing.T) {
	for _, p := range []*Pool{nil, NewPool(4)} {
		results, err := p.Parallelize(context.Background(), 100, func(i int) (interface{}, error) {
			return i * i, nil
		})
		require.NoError(t, err)
		for i, r := range results {
			assert.Equal(t, i*i, r.(int))
		}
		p.TearDown()
	}
}

func TestParallelizeError(t *testing.T) {
	errBoom := errors.New("boom")
	for _, p := range []*Pool{nil, NewPool(2)} {
		_, err := p.Parallelize(context.Background(), 10, func(i int) (interface{}, error) {
			if i == 7 {
				return nil, errBoom
			}
			return i, nil
		})
		assert.ErrorIs(t, err, errBoom)
		p.TearDown()
	}
}

func TestParallelizeCancelled(t *testing.T) {
	for _, p := range []*Pool{nil, NewPool(2)} {
		ctx, cancel := context.WithCancel(context.Background())
		var calls int64
		_, err := p.Parallelize(ctx, 1000, func(i int) (interface{}, error) {
			if atomic.AddInt64(&calls, 1) == 3 {
				cancel()
			}
			return i, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, atomic.LoadInt64(&calls), int64(1000))
		p.TearDown()
	}
}

func TestSearch(t *testing.T) {
	var ctr int64
	p := NewPool(3)
	defer p.TearDown()
	results := p.Search(5, func() interface{} {
		if atomic.AddInt64(&ctr, 1)%3 == 0 {
			return true
		}
		return nil
	})
	assert.Len(t, results, 5)
	for _, r := range results {
		assert.NotNil(t, r)
	}
}
