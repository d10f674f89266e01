package turn

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExclusiveManagerSerializesTurns(t *testing.T) {
	m := NewExclusiveManager()

	var log []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	t1 := New(1, Flags{})
	t2 := New(2, Flags{})

	m.Start(t1)

	done := make(chan struct{})
	go func() {
		m.Start(t2)
		record("t2 started")
		m.End(t2)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	record("t1 running")
	m.End(t1)

	<-done

	assert.Equal(t, []string{"t1 running", "t2 started"}, log)
}

func TestExclusiveManagerMergesCompatibleInputs(t *testing.T) {
	m := NewExclusiveManager()

	tail := New(1, Flags{AllowInputMerging: true})
	m.Start(tail)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var merged []int

	for i := 0; i < 3; i++ {
		i := i
		wg.Go(func() {
			ok := m.TryMerge(func(mt *Turn) {
				assert.Same(t, tail, mt, "merged closure must run against the tail's own turn")
				mu.Lock()
				merged = append(merged, i)
				mu.Unlock()
			})
			assert.True(t, ok)
		})
	}

	// Give the mergers a chance to enqueue before the tail runs them.
	time.Sleep(20 * time.Millisecond)

	m.RunMerged(tail)
	m.End(tail)

	wg.Wait()

	assert.Len(t, merged, 3)
}

func TestExclusiveManagerRejectsMergeWithoutTail(t *testing.T) {
	m := NewExclusiveManager()
	ok := m.TryMerge(func(*Turn) {})
	assert.False(t, ok)
}

func TestExclusiveManagerRejectsMergeWhenDisallowed(t *testing.T) {
	m := NewExclusiveManager()
	tail := New(1, Flags{AllowInputMerging: false})
	m.Start(tail)

	ok := m.TryMerge(func(*Turn) {})
	assert.False(t, ok)

	m.End(tail)
}

func TestNoneManagerNeverBlocks(t *testing.T) {
	m := NewNoneManager()
	t1 := New(1, Flags{})
	t2 := New(2, Flags{})

	m.Start(t1)
	m.Start(t2) // must not block

	assert.False(t, m.TryMerge(func(*Turn) {}))

	m.End(t1)
	m.End(t2)
}

func TestClockIsMonotonic(t *testing.T) {
	var c Clock
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := c.Next()
		assert.Greater(t, id, prev)
		prev = id
	}
}
