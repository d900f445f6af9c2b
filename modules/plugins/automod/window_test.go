package automod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowTriggersWithinInterval(t *testing.T) {
	assert := assert.New(t)

	w := NewWindow()
	triggered, _ := w.Record("user", epoch, 1, 5*time.Second, 3)
	assert.False(triggered)
	triggered, _ = w.Record("user", epoch.Add(time.Second), 1, 5*time.Second, 3)
	assert.False(triggered)
	triggered, keys := w.Record("user", epoch.Add(4*time.Second), 1, 5*time.Second, 3)
	assert.True(triggered)
	assert.Equal([]string{"user"}, keys)
	assert.Equal(0, w.Len(), "a triggered window starts over")
}

func TestWindowDoesNotTriggerOutsideInterval(t *testing.T) {
	assert := assert.New(t)

	w := NewWindow()
	w.Record("user", epoch, 1, 5*time.Second, 3)
	w.Record("user", epoch.Add(time.Second), 1, 5*time.Second, 3)
	triggered, _ := w.Record("user", epoch.Add(7*time.Second), 1, 5*time.Second, 3)
	assert.False(triggered)
	assert.Equal(1, w.Sum())
}

func TestWindowIntervalBoundaryIsInclusive(t *testing.T) {
	w := NewWindow()
	w.Record("user", epoch, 1, 5*time.Second, 2)
	triggered, _ := w.Record("user", epoch.Add(5*time.Second), 1, 5*time.Second, 2)
	assert.True(t, triggered)
}

func TestWindowWeights(t *testing.T) {
	assert := assert.New(t)

	w := NewWindow()
	triggered, _ := w.Record("user", epoch, 3, 5*time.Second, 5)
	assert.False(triggered)
	triggered, _ = w.Record("user", epoch.Add(time.Second), 2, 5*time.Second, 5)
	assert.True(triggered)

	triggered, _ = w.Record("user", epoch, 0, 5*time.Second, 1)
	assert.False(triggered, "zero weight is ignored")
}

func TestWindowClampsLateEvents(t *testing.T) {
	assert := assert.New(t)

	w := NewWindow()
	w.Record("user", epoch.Add(10*time.Second), 1, 5*time.Second, 3)
	// delivered late, counted at the newest time
	w.Record("user", epoch, 1, 5*time.Second, 3)
	assert.Equal(2, w.Sum())
	triggered, _ := w.Record("user", epoch.Add(11*time.Second), 1, 5*time.Second, 3)
	assert.True(triggered)
}

func TestWindowDistinctKeysAndIdle(t *testing.T) {
	assert := assert.New(t)

	w := NewWindow()
	w.Record("a", epoch, 1, 10*time.Second, 4)
	w.Record("b", epoch.Add(time.Second), 1, 10*time.Second, 4)
	w.Record("a", epoch.Add(2*time.Second), 1, 10*time.Second, 4)
	triggered, keys := w.Record("c", epoch.Add(3*time.Second), 1, 10*time.Second, 4)
	assert.True(triggered)
	assert.Equal([]string{"a", "b", "c"}, keys)

	w.Record("a", epoch.Add(4*time.Second), 1, 10*time.Second, 4)
	assert.False(w.Idle(epoch.Add(15*time.Second), 10*time.Second))
	assert.True(w.Idle(epoch.Add(15*time.Second+time.Millisecond), 10*time.Second))
}
