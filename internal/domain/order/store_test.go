package order

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(id string, status Status) Order {
	return Order{
		ID:          id,
		Status:      status,
		UpdatedAt:   100,
		TotalAmount: decimal.NewFromInt(42),
		Items: []Item{
			{
				ProductID: 1,
				Name:      "Widget",
				ModelName: "[5N1] Blue",
				Quantity:  2,
				Price:     decimal.NewFromInt(21),
				Location:  &Location{Shelf: "5", Level: "1"},
			},
		},
	}
}

func TestStore_UpsertIfAbsent(t *testing.T) {
	store := NewStore()

	inserted := store.UpsertIfAbsent(newTestOrder("A1", StatusUnprocessed))
	assert.True(t, inserted)
	assert.Equal(t, 1, store.Len())

	// Second insert with the same id is a no-op.
	dup := newTestOrder("A1", StatusProcessed)
	inserted = store.UpsertIfAbsent(dup)
	assert.False(t, inserted)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Find("A1")
	require.True(t, ok)
	assert.Equal(t, StatusUnprocessed, got.Status)
}

func TestStore_Mutate(t *testing.T) {
	store := NewStore()
	store.UpsertIfAbsent(newTestOrder("A1", StatusUnprocessed))

	ok := store.Mutate("A1", func(o *Order) {
		o.Status = StatusProcessed
		o.Note = "fragile"
	})
	assert.True(t, ok)

	got, found := store.Find("A1")
	require.True(t, found)
	assert.Equal(t, StatusProcessed, got.Status)
	assert.Equal(t, "fragile", got.Note)

	assert.False(t, store.Mutate("missing", func(o *Order) {}))
}

func TestStore_MutateAll(t *testing.T) {
	store := NewStore()
	store.UpsertIfAbsent(newTestOrder("A1", StatusUnprocessed))
	store.UpsertIfAbsent(newTestOrder("A2", StatusUnprocessed))

	touched := store.MutateAll([]string{"A1", "A2", "missing"}, func(o *Order) {
		o.Picker = "kim"
	})
	assert.Equal(t, 2, touched)

	for _, id := range []string{"A1", "A2"} {
		got, ok := store.Find(id)
		require.True(t, ok)
		assert.Equal(t, "kim", got.Picker)
	}
}

func TestStore_RemoveWhere(t *testing.T) {
	store := NewStore()
	store.UpsertIfAbsent(newTestOrder("A1", StatusUnprocessed))
	store.UpsertIfAbsent(newTestOrder("A2", StatusProcessed))
	store.UpsertIfAbsent(newTestOrder("A3", StatusUnprocessed))

	removed := store.RemoveWhere(func(o *Order) bool {
		return o.Status == StatusUnprocessed
	})
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"A2"}, store.IDs())
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := NewStore()
	store.UpsertIfAbsent(newTestOrder("A1", StatusUnprocessed))

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 1)

	// Mutating the snapshot must not leak into the store.
	snapshot[0].Note = "scribble"
	snapshot[0].Items[0].Quantity = 99
	snapshot[0].Items[0].Location.Shelf = "0"

	got, ok := store.Find("A1")
	require.True(t, ok)
	assert.Empty(t, got.Note)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "5", got.Items[0].Location.Shelf)
}

func TestStore_SnapshotOrdering(t *testing.T) {
	store := NewStore()
	for i, ts := range []int64{50, 200, 100} {
		o := newTestOrder(fmt.Sprintf("A%d", i), StatusUnprocessed)
		o.UpdatedAt = ts
		store.UpsertIfAbsent(o)
	}

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, int64(200), snapshot[0].UpdatedAt)
	assert.Equal(t, int64(100), snapshot[1].UpdatedAt)
	assert.Equal(t, int64(50), snapshot[2].UpdatedAt)
}

func TestStore_ConcurrentUpserts(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.UpsertIfAbsent(newTestOrder(fmt.Sprintf("O%d", i), StatusUnprocessed))
				store.Mutate(fmt.Sprintf("O%d", i), func(o *Order) { o.Printed = true })
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}
