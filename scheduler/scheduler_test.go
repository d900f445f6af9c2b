package scheduler

import (
	"os"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	cache.SetLogger(logrus.New())
	os.Exit(m.Run())
}

func TestTickRunsDueTasks(t *testing.T) {
	assert := assert.New(t)

	s := New(time.Second)
	var sweeps, resets int
	s.Register("sweep", 500*time.Millisecond, func(now time.Time) { sweeps++ })
	s.Register("reset", time.Hour, func(now time.Time) { resets++ })

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(s.Tick(start))

	assert.Equal([]string{"sweep"}, s.Tick(start.Add(500*time.Millisecond)))
	assert.Empty(s.Tick(start.Add(700*time.Millisecond)))
	assert.Equal([]string{"sweep"}, s.Tick(start.Add(time.Second)))
	assert.Equal(2, sweeps)
	assert.Equal(0, resets)

	ran := s.Tick(start.Add(time.Hour))
	assert.Equal([]string{"sweep", "reset"}, ran)
	assert.Equal(1, resets)
}

func TestTickSkipsMissedRuns(t *testing.T) {
	assert := assert.New(t)

	s := New(time.Second)
	var runs int
	s.Register("sweep", time.Second, func(now time.Time) { runs++ })

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Tick(start)
	s.Tick(start.Add(10 * time.Second))
	assert.Equal(1, runs)
	assert.Empty(s.Tick(start.Add(10*time.Second + 500*time.Millisecond)))
	assert.Equal([]string{"sweep"}, s.Tick(start.Add(11*time.Second)))
}

func TestPanickingTaskDoesNotStopOthers(t *testing.T) {
	assert := assert.New(t)

	s := New(time.Second)
	var runs int
	s.Register("broken", time.Second, func(now time.Time) { panic("broken") })
	s.Register("healthy", time.Second, func(now time.Time) { runs++ })

	start := time.Now()
	s.Tick(start)
	assert.NotPanics(func() { s.Tick(start.Add(time.Second)) })
	assert.Equal(1, runs)
	assert.Equal([]string{"broken", "healthy"}, s.Names())
}
