package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushDrain(t *testing.T) {
	q := New[int]()
	assert.True(t, q.Empty())
	assert.Nil(t, q.Drain())

	q.Push(1, 2)
	q.Push(3)
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.True(t, q.Empty())
	assert.Nil(t, q.Drain())
}

func TestQueue_DrainedSliceIsDetached(t *testing.T) {
	q := New[string]()
	q.Push("a")
	got := q.Drain()

	q.Push("b")
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, []string{"b"}, q.Drain())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	batch := q.Drain()

	q.Push(3)
	q.Requeue(batch...)
	q.Requeue()

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	total := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		total += len(q.Drain())
		select {
		case <-done:
			total += len(q.Drain())
			require.Equal(t, producers*perProducer, total)
			return
		default:
		}
	}
}
