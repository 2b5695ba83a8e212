package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLatchTransitions(t *testing.T) {
	var l latch
	assert.False(t, l.deferRefresh(), "nothing to defer to while idle")
	assert.Equal(t, Idle, l.state)

	assert.True(t, l.begin())
	assert.False(t, l.begin())
	assert.Equal(t, Executing, l.state)

	assert.True(t, l.deferRefresh())
	assert.True(t, l.deferRefresh())
	assert.Equal(t, ExecutingWithPendingRefresh, l.state)

	assert.True(t, l.end())
	assert.Equal(t, Idle, l.state)
	assert.False(t, l.pending())

	assert.True(t, l.begin())
	assert.False(t, l.end(), "no trigger arrived during the second action")
}

// The latch agrees with a two-boolean model in which the pending flag is
// only set while executing and consumed exactly once on end.
func TestLatchMatchesModel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var l latch
		var executing, required bool

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 60).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				ok := l.begin()
				if ok != !executing {
					rt.Fatalf("begin returned %v while executing=%v", ok, executing)
				}
				if ok {
					executing = true
				}
			case 1:
				deferred := l.deferRefresh()
				if deferred != executing {
					rt.Fatalf("deferRefresh returned %v while executing=%v", deferred, executing)
				}
				if executing {
					required = true
				}
			case 2:
				got := l.end()
				if got != (executing && required) {
					rt.Fatalf("end returned %v, model expected %v", got, executing && required)
				}
				executing, required = false, false
			}

			if required && !executing {
				rt.Fatalf("refresh pending while idle")
			}
			if l.executing() != executing || l.pending() != required {
				rt.Fatalf("latch %s disagrees with model executing=%v required=%v", l.state, executing, required)
			}
		}
	})
}
