package window

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool-watch/internal/accesslog"
)

func rec(isErr bool) accesslog.Record {
	return accesslog.Record{IsError: isErr, Status: 200}
}

func TestWindowEvictsOldest(t *testing.T) {
	w := New(3)
	w.Push(rec(true))
	w.Push(rec(false))
	ratio, fill := w.Push(rec(false))
	assert.Equal(t, 3, fill)
	assert.InDelta(t, 1.0/3, ratio, 1e-9)

	// 第一条错误被淘汰
	ratio, fill = w.Push(rec(false))
	assert.Equal(t, 3, fill)
	assert.Equal(t, 0.0, ratio)
	assert.Equal(t, 0, w.Errors())
}

func TestWindowEmptyRatio(t *testing.T) {
	w := New(10)
	assert.Equal(t, 0.0, w.Ratio())
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 10, w.Cap())
}

func TestWindowInvariantRandomPushes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, capacity := range []int{1, 2, 7, 50, 200} {
		w := New(capacity)
		var history []bool
		for i := 0; i < 1000; i++ {
			isErr := rng.Intn(4) == 0
			history = append(history, isErr)
			ratio, fill := w.Push(rec(isErr))

			require.LessOrEqual(t, fill, capacity)
			retained := history
			if len(retained) > capacity {
				retained = retained[len(retained)-capacity:]
			}
			errs := 0
			for _, e := range retained {
				if e {
					errs++
				}
			}
			require.Equal(t, len(retained), fill)
			require.Equal(t, errs, w.Errors())
			require.InDelta(t, float64(errs)/float64(len(retained)), ratio, 1e-12)
		}
	}
}

func TestExceedsIsStrict(t *testing.T) {
	assert.False(t, Exceeds(0.02, 0.02))
	assert.True(t, Exceeds(0.025, 0.02))
	assert.False(t, Exceeds(0.0, 0.02))
}

func TestEvaluatorMinFill(t *testing.T) {
	e := Evaluator{Threshold: 0.02, MinFill: 50}
	assert.False(t, e.Ready(49))
	assert.False(t, e.High(1.0, 49), "未达到最小填充不判定")
	assert.True(t, e.High(0.5, 50))
	assert.False(t, e.High(0.02, 200))
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
