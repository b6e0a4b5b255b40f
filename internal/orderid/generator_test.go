package orderid

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSequence struct {
	counters sync.Map
	failures atomic.Int32
	calls    atomic.Int32
	fixed    *int64
}

func (f *fakeSequence) Next(_ context.Context, year int) (int64, error) {
	f.calls.Add(1)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return 0, errors.New("deadlock found when trying to get lock")
	}
	if f.fixed != nil {
		return *f.fixed, nil
	}
	v, _ := f.counters.LoadOrStore(year, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1), nil
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, 6, 1, 12, 0, 0, 0, time.UTC) }
}

func TestGenerator_Format(t *testing.T) {
	g := NewGenerator(&fakeSequence{}).WithClock(fixedClock(2025))

	first, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE20250001", first)

	second, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE20250002", second)
}

func TestGenerator_WidensPastFourDigits(t *testing.T) {
	v := int64(12345)
	g := NewGenerator(&fakeSequence{fixed: &v}).WithClock(fixedClock(2025))

	id, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE202512345", id)
}

func TestGenerator_YearRollover(t *testing.T) {
	seq := &fakeSequence{}
	year := 2025
	g := NewGenerator(seq).WithClock(func() time.Time { return fixedClock(year)() })

	id, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE20250001", id)

	year = 2026
	id, err = g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE20260001", id)
}

func TestGenerator_RetriesTransientFailures(t *testing.T) {
	seq := &fakeSequence{}
	seq.failures.Store(2)
	g := NewGenerator(seq).WithClock(fixedClock(2025))

	id, err := g.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EE20250001", id)
	assert.Equal(t, int32(3), seq.calls.Load())
}

func TestGenerator_GivesUp(t *testing.T) {
	seq := &fakeSequence{}
	seq.failures.Store(100)
	g := NewGenerator(seq).WithClock(fixedClock(2025))

	_, err := g.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(maxTries), seq.calls.Load())
}

func TestGenerator_RejectsNonPositive(t *testing.T) {
	zero := int64(0)
	seq := &fakeSequence{fixed: &zero}
	g := NewGenerator(seq).WithClock(fixedClock(2025))

	_, err := g.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), seq.calls.Load())
}

func TestGenerator_ConcurrentIDsAreUnique(t *testing.T) {
	g := NewGenerator(&fakeSequence{}).WithClock(fixedClock(2025))

	const workers = 100
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next(context.Background())
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, workers)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}
