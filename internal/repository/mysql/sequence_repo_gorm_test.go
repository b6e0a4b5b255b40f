package mysql

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRepo_NextIsMonotonicPerYear(t *testing.T) {
	ctx := context.Background()
	seq := NewSequenceRepository(newTestDB(t))

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// a new year restarts
	got, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestSequenceRepo_SeedsFromExistingOrders(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	seq := NewSequenceRepository(db)

	require.NoError(t, repo.Create(ctx, sampleOrder("EE20250041", "a@example.com", time.Now().UTC())))
	require.NoError(t, repo.Create(ctx, sampleOrder("EE202510007", "a@example.com", time.Now().UTC())))
	require.NoError(t, repo.Create(ctx, sampleOrder("EE20240099", "a@example.com", time.Now().UTC())))

	highest, err := seq.HighestIssued(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(10007), highest)

	got, err := seq.Next(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(10008), got)
}

func TestSequenceRepo_ExistingRowIsNotReseeded(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(&OrderSequence{SeqYear: 2025, CurrentValue: 5}).Error)
	require.NoError(t, NewOrderRepository(db).Create(ctx, sampleOrder("EE20250900", "a@example.com", time.Now().UTC())))

	seq := NewSequenceRepository(db)
	got, err := seq.Next(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)

	var row OrderSequence
	require.NoError(t, db.First(&row, "seq_year = ?", 2025).Error)
	assert.Equal(t, int64(6), row.CurrentValue)
}

func TestSequenceRepo_RowDeletedUnderneathIsRecreated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seq := NewSequenceRepository(db)

	_, err := seq.Next(ctx, 2025)
	require.NoError(t, err)
	require.NoError(t, db.Where("seq_year = ?", 2025).Delete(&OrderSequence{}).Error)

	_, err = seq.Next(ctx, 2025)
	require.Error(t, err)

	got, err := seq.Next(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestSequenceRepo_ConcurrentNextIsUnique(t *testing.T) {
	ctx := context.Background()
	seq := NewSequenceRepository(newTestDB(t))

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(ctx, 2025)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[v], "duplicate sequence %d", v)
			seen[v] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
	for i := int64(1); i <= workers; i++ {
		assert.True(t, seen[i], "missing sequence %d", i)
	}
}
