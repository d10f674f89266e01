package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/turn"
)

func TestSubtreeJoinTicksOnceAndSkipsCleanSiblings(t *testing.T) {
	src := newTestNode("src")
	left := newTestNode("left")
	right := newTestNode("right")
	join := newTestNode("join")
	clean := newTestNode("clean") // unreached: no predecessor is dirty
	graph.Attach(left, src)
	graph.Attach(right, src)
	graph.Attach(join, left)
	graph.Attach(join, right)

	e := &Subtree{}
	tr := turn.New(1, turn.Flags{})
	err := e.Propagate(tr, []graph.Input{src})

	assert.NoError(t, err)
	assert.Equal(t, 1, src.Ticks())
	assert.Equal(t, 1, left.Ticks())
	assert.Equal(t, 1, right.Ticks())
	assert.Equal(t, 1, join.Ticks())
	assert.Equal(t, 0, clean.Ticks())
}

func TestSubtreeTwoDisjointDirtyInputsNeedNoSharedSync(t *testing.T) {
	srcA := newTestNode("srcA")
	sinkA := newTestNode("sinkA")
	srcB := newTestNode("srcB")
	sinkB := newTestNode("sinkB")
	graph.Attach(sinkA, srcA)
	graph.Attach(sinkB, srcB)

	e := &Subtree{Parallel: true}
	tr := turn.New(1, turn.Flags{})
	err := e.Propagate(tr, []graph.Input{srcA, srcB})

	assert.NoError(t, err)
	assert.Equal(t, 1, sinkA.Ticks())
	assert.Equal(t, 1, sinkB.Ticks())
}

func TestSubtreeMultipleDirtyInputsSharingASinkTickItOnce(t *testing.T) {
	srcA := newTestNode("srcA")
	srcB := newTestNode("srcB")
	sink := newTestNode("sink")
	graph.Attach(sink, srcA)
	graph.Attach(sink, srcB)

	e := &Subtree{}
	tr := turn.New(1, turn.Flags{})
	err := e.Propagate(tr, []graph.Input{srcA, srcB})

	assert.NoError(t, err)
	assert.Equal(t, 1, sink.Ticks())
}
