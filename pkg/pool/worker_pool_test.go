package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileforge/tileserv/pkg/errors"
	"github.com/tileforge/tileserv/pkg/testutil"
)

type handle struct {
	workerID int
	closed   bool
}

func TestAcquireSameWorkerSameHandle(t *testing.T) {
	var built int64
	p := NewWorker(func(workerID int) (*handle, error) {
		atomic.AddInt64(&built, 1)
		return &handle{workerID: workerID}, nil
	}, nil, testutil.TestLogger(t))

	h1, err := p.Acquire(3)
	require.NoError(t, err)
	h2, err := p.Acquire(3)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int64(1), built)
	assert.Equal(t, 1, p.Len())
}

func TestAcquireDistinctWorkersDistinctHandles(t *testing.T) {
	p := NewWorker(func(workerID int) (*handle, error) {
		return &handle{workerID: workerID}, nil
	}, nil, testutil.TestLogger(t))

	h1, err := p.Acquire(1)
	require.NoError(t, err)
	h2, err := p.Acquire(2)
	require.NoError(t, err)

	assert.NotSame(t, h1, h2)
	assert.Equal(t, 1, h1.workerID)
	assert.Equal(t, 2, h2.workerID)
	assert.Equal(t, 2, p.Len())
}

func TestFactoryFailureLeavesNoEntry(t *testing.T) {
	var attempts int64
	p := NewWorker(func(workerID int) (*handle, error) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			return nil, fmt.Errorf("backend unavailable")
		}
		return &handle{workerID: workerID}, nil
	}, nil, testutil.TestLogger(t))

	_, err := p.Acquire(7)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, 0, p.Len())

	// Retry succeeds because no failed entry was registered.
	h, err := p.Acquire(7)
	require.NoError(t, err)
	assert.Equal(t, 7, h.workerID)
	assert.Equal(t, 1, p.Len())
}

func TestClose(t *testing.T) {
	closed := make(map[int]bool)
	p := NewWorker(func(workerID int) (*handle, error) {
		return &handle{workerID: workerID}, nil
	}, func(h *handle) error {
		h.closed = true
		closed[h.workerID] = true
		return nil
	}, testutil.TestLogger(t))

	_, err := p.Acquire(1)
	require.NoError(t, err)
	_, err = p.Acquire(2)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.True(t, closed[1])
	assert.True(t, closed[2])
	assert.Equal(t, 0, p.Len())

	// Closing twice is a no-op.
	require.NoError(t, p.Close())
}

func TestAcquireAfterClose(t *testing.T) {
	p := NewWorker(func(workerID int) (*handle, error) {
		return &handle{workerID: workerID}, nil
	}, nil, testutil.TestLogger(t))

	require.NoError(t, p.Close())

	_, err := p.Acquire(1)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestCloseReturnsFirstError(t *testing.T) {
	p := NewWorker(func(workerID int) (*handle, error) {
		return &handle{workerID: workerID}, nil
	}, func(h *handle) error {
		return fmt.Errorf("close failed for worker %d", h.workerID)
	}, testutil.TestLogger(t))

	_, err := p.Acquire(1)
	require.NoError(t, err)

	assert.Error(t, p.Close())
}

func TestConcurrentAcquire(t *testing.T) {
	var built int64
	p := NewWorker(func(workerID int) (*handle, error) {
		atomic.AddInt64(&built, 1)
		return &handle{workerID: workerID}, nil
	}, nil, testutil.TestLogger(t))

	const workers = 16
	results := make([]*handle, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h, err := p.Acquire(w)
				if err != nil {
					t.Error(err)
					return
				}
				if results[w] == nil {
					results[w] = h
				} else if results[w] != h {
					t.Errorf("worker %d received a different handle", w)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(workers), built)
	assert.Equal(t, workers, p.Len())
	assert.Equal(t, int64(workers), p.Constructed())
}
