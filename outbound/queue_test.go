package outbound

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	cache.SetLogger(logrus.New())
	os.Exit(m.Run())
}

func TestQueueDeliversInOrder(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	q := NewQueue(fake, time.Millisecond, 0)
	for _, content := range []string{"first", "second", "third"} {
		assert.True(q.Enqueue("log", &discordgo.MessageSend{Content: content}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	assert.Eventually(func() bool { return len(fake.SentMessages()) == 3 }, time.Second, 5*time.Millisecond)
	sent := fake.SentMessages()
	assert.Equal("first", sent[0].Data.Content)
	assert.Equal("second", sent[1].Data.Content)
	assert.Equal("third", sent[2].Data.Content)
	assert.Equal(0, q.Len())
}

func TestQueueKeepsMinimumInterval(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	sentAt := make(chan time.Time, 3)
	fake.OnSend = func(channelID string, data *discordgo.MessageSend) {
		sentAt <- time.Now()
	}
	q := NewQueue(fake, 40*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue("log", &discordgo.MessageSend{Content: "a"})
	q.Enqueue("log", &discordgo.MessageSend{Content: "b"})
	q.Enqueue("log", &discordgo.MessageSend{Content: "c"})

	var previous time.Time
	for i := 0; i < 3; i++ {
		select {
		case at := <-sentAt:
			if i > 0 {
				assert.True(at.Sub(previous) >= 30*time.Millisecond, "send %d came too early", i)
			}
			previous = at
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d was not sent", i)
		}
	}
}

func TestQueueDropsFailedMessages(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	fake.Errors["SendMessage"] = errors.New("missing access")
	q := NewQueue(fake, time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue("log", &discordgo.MessageSend{Content: "a"})
	q.Enqueue("log", &discordgo.MessageSend{Content: "b"})

	assert.Eventually(func() bool { return len(fake.CallsWithPrefix("SendMessage")) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(0, q.Len())
}

func TestEnqueueNeverBlocks(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue(platform.NewFake("bot"), time.Hour, 2)
	assert.True(q.Enqueue("log", &discordgo.MessageSend{Content: "a"}))
	assert.True(q.Enqueue("log", &discordgo.MessageSend{Content: "b"}))
	assert.False(q.Enqueue("log", &discordgo.MessageSend{Content: "c"}))
	assert.False(q.Enqueue("", &discordgo.MessageSend{Content: "d"}))
	assert.Equal(2, q.Len())
}

func TestConcurrentEnqueueRespectsLimit(t *testing.T) {
	assert := assert.New(t)

	q := NewQueue(platform.NewFake("bot"), time.Millisecond, 10)
	var accepted int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Enqueue("log", &discordgo.MessageSend{Content: "spam"}) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(10, accepted)
	assert.Equal(10, q.Len())
}
