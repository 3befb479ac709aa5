package workqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) {}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 200; i++ {
		require.NoError(t, q.Insert(NewItem("step", noop)))
	}

	var prev time.Time
	for i := 0; i < 200; i++ {
		item, ok := q.TryPop()
		require.True(t, ok)
		assert.False(t, item.EnqueuedAt.Before(prev))
		prev = item.EnqueuedAt
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestQueue_OrderSurvivesCompaction(t *testing.T) {
	q := NewQueue(0)
	names := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		name := string(rune('a' + i%26))
		names = append(names, name)
		require.NoError(t, q.Insert(NewItem(name, noop)))
		if i%3 == 2 {
			item, ok := q.TryPop()
			require.True(t, ok)
			assert.Equal(t, names[0], item.Name)
			names = names[1:]
		}
	}
	for len(names) > 0 {
		item, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, names[0], item.Name)
		names = names[1:]
	}
}

func TestQueue_InsertRejectsNilFunc(t *testing.T) {
	q := NewQueue(0)
	assert.Error(t, q.Insert(Item{Name: "empty"}))
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Insert(NewItem("step", noop)))
	}
	assert.Equal(t, 5, q.Clear())
	assert.Zero(t, q.Len())

	require.NoError(t, q.Insert(NewItem("after", noop)), "clear must not close the queue")
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DropHooks(t *testing.T) {
	q := NewQueue(0)
	var dropped []string
	for _, name := range []string{"a", "b", "c"} {
		item := NewItem(name, noop)
		if name != "b" {
			item.OnDrop = func() { dropped = append(dropped, name) }
		}
		require.NoError(t, q.Insert(item))
	}

	popped, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "a", popped.Name)

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, []string{"c"}, dropped, "only items still queued are dropped")

	item := NewItem("d", noop)
	item.OnDrop = func() {
		// Hooks run outside the lock.
		assert.True(t, q.Closed())
		assert.Zero(t, q.Len())
		dropped = append(dropped, "d")
	}
	require.NoError(t, q.Insert(item))
	assert.Equal(t, 1, q.Close())
	assert.Equal(t, []string{"c", "d"}, dropped)
	assert.Zero(t, q.Close())
	assert.Len(t, dropped, 2)
}

func TestQueue_Capacity(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.Insert(NewItem("a", noop)))
	require.NoError(t, q.Insert(NewItem("b", noop)))

	err := q.Insert(NewItem("c", noop))
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestQueue_CloseWakesPop(t *testing.T) {
	q := NewQueue(0)

	done := make(chan bool)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	assert.ErrorIs(t, q.Insert(NewItem("late", noop)), ErrQueueClosed)
	assert.Zero(t, q.Close(), "second close is a no-op")
}

func TestQueue_PopBlocksUntilInsert(t *testing.T) {
	q := NewQueue(0)

	got := make(chan string)
	go func() {
		item, _ := q.Pop()
		got <- item.Name
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before any insert")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Insert(NewItem("wake", noop)))
	assert.Equal(t, "wake", <-got)
}
