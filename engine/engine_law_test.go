package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnatoleLucet/reactor/graph"
	"github.com/AnatoleLucet/reactor/turn"
)

// TestEnginesAgreeOnDiamondGlitchFreedom is the law test from SPEC_FULL.md
// §10: every engine (sequential and parallel toposort, pulsecount, subtree)
// must tick a diamond join exactly once per turn, regardless of internal
// scheduling strategy — the shared observable-semantics guarantee across
// §4.D/E/F. Modeled on original_source/tests/src/ParallelizationTest.cpp's
// DomainParams<concurrency, engine> matrix.
func TestEnginesAgreeOnDiamondGlitchFreedom(t *testing.T) {
	newEngine := func(kind Kind) Engine {
		switch kind {
		case ToposortSequential:
			return &Toposort{}
		case ToposortParallel:
			return &Toposort{Parallel: true}
		case PulsecountKind:
			return &Pulsecount{}
		case SubtreeKind:
			return &Subtree{}
		default:
			t.Fatalf("unknown kind %v", kind)
			return nil
		}
	}

	kinds := []Kind{ToposortSequential, ToposortParallel, PulsecountKind, SubtreeKind}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			src := newTestNode("src")
			left := newTestNode("left")
			right := newTestNode("right")
			join := newTestNode("join")
			graph.Attach(left, src)
			graph.Attach(right, src)
			graph.Attach(join, left)
			graph.Attach(join, right)

			e := newEngine(kind)
			tr := turn.New(1, turn.Flags{})
			err := e.Propagate(tr, []graph.Input{src})

			assert.NoError(t, err)
			assert.Equal(t, 1, src.Ticks())
			assert.Equal(t, 1, left.Ticks())
			assert.Equal(t, 1, right.Ticks())
			assert.Equal(t, 1, join.Ticks(), "%s must tick the join exactly once", kind)
		})
	}
}

// TestEnginesAgreeOnAdditionChain is the other scenario in spec.md §8: a
// linear chain of N nodes, each reading its single predecessor, must tick
// every node exactly once.
func TestEnginesAgreeOnAdditionChain(t *testing.T) {
	const chainLen = 6

	newEngine := func(kind Kind) Engine {
		switch kind {
		case ToposortSequential:
			return &Toposort{}
		case ToposortParallel:
			return &Toposort{Parallel: true}
		case PulsecountKind:
			return &Pulsecount{}
		case SubtreeKind:
			return &Subtree{}
		default:
			return nil
		}
	}

	for _, kind := range []Kind{ToposortSequential, ToposortParallel, PulsecountKind, SubtreeKind} {
		t.Run(kind.String(), func(t *testing.T) {
			chain := make([]*testNode, chainLen)
			for i := range chain {
				chain[i] = newTestNode("n")
				if i > 0 {
					graph.Attach(chain[i], chain[i-1])
				}
			}

			e := newEngine(kind)
			tr := turn.New(1, turn.Flags{})
			err := e.Propagate(tr, []graph.Input{chain[0]})

			assert.NoError(t, err)
			for i, n := range chain {
				assert.Equal(t, 1, n.Ticks(), "node %d must tick exactly once", i)
			}
		})
	}
}
