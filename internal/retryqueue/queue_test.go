package retryqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PopReturnsEnqueuedTask(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Task{UserName: "alice", Delta: 1})

	task, ok := q.Pop(context.Background(), 10*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "alice", task.UserName)
	assert.Equal(t, 1, task.Delta)
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Task{UserName: "first", Delta: 1})
	q.Enqueue(Task{UserName: "second", Delta: 2})
	q.Enqueue(Task{UserName: "third", Delta: 3})

	for _, want := range []string{"first", "second", "third"} {
		task, ok := q.Pop(context.Background(), 10*time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, want, task.UserName)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopTimesOutOnEmpty(t *testing.T) {
	q := NewQueue()

	start := time.Now()
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueue_PopObservesCancellation(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx, 10*time.Second)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after cancellation")
	}
}

func TestQueue_PopWakesOnEnqueue(t *testing.T) {
	q := NewQueue()

	done := make(chan Task, 1)
	go func() {
		task, ok := q.Pop(context.Background(), 5*time.Second)
		if ok {
			done <- task
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Task{UserName: "bob", Delta: 2})

	select {
	case task := <-done:
		assert.Equal(t, "bob", task.UserName)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on enqueue")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	const producers, perProducer = 10, 20
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(Task{UserName: "user", Delta: 1})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
