package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeObserver struct {
	unregistered bool
}

func (f *fakeObserver) Unregister() { f.unregistered = true }

func TestTurnFinalizeDetachesObserversOnce(t *testing.T) {
	tr := New(1, Flags{})

	obs := &fakeObserver{}
	tr.QueueObserverDetach(obs)

	conts := tr.Finalize()
	assert.Empty(t, conts)
	assert.True(t, obs.unregistered)
	assert.Equal(t, Ended, tr.State())

	obs.unregistered = false
	again := tr.Finalize()
	assert.Nil(t, again)
	assert.False(t, obs.unregistered, "second finalize must not re-detach")
}

func TestTurnRecordsContinuationsInOrder(t *testing.T) {
	tr := New(1, Flags{})

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		tr.RecordContinuation("d2", func() { order = append(order, i) })
	}

	conts := tr.Finalize()
	assert.Len(t, conts, 3)
	for i, c := range conts {
		assert.Equal(t, "d2", c.Domain)
		c.Fn()
		assert.Equal(t, i, order[len(order)-1])
	}
}

func TestTurnID(t *testing.T) {
	tr := New(42, Flags{AllowInputMerging: true})
	assert.Equal(t, uint64(42), tr.ID())
	assert.True(t, tr.Flags().AllowInputMerging)
	assert.Equal(t, Admitted, tr.State())
}
