package eventlog

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batcherClock struct {
	now time.Time
}

func (c *batcherClock) Now() time.Time { return c.now }

func newBatcher(configure func(settings *models.GuildSettings)) (*Batcher, *recordingOutbox, *batcherClock) {
	outbox := &recordingOutbox{}
	clock := &batcherClock{now: epoch}
	batcher := NewBatcher(logSettings(configure), outbox)
	batcher.now = clock.Now
	batcher.async = syncRun
	return batcher, outbox, clock
}

func TestBurstIsReportedOnce(t *testing.T) {
	assert := assert.New(t)
	batcher, outbox, clock := newBatcher(nil)

	for i := 0; i < 5; i++ {
		clock.now = epoch.Add(time.Duration(i) * 50 * time.Millisecond)
		assert.True(batcher.Enqueue("guild", "general", deleted(fmt.Sprintf("10%d", i), "1", "hello")))
	}

	assert.Equal(0, batcher.Flush(epoch.Add(time.Second)))
	assert.Equal(0, batcher.Flush(epoch.Add(5*time.Second)), "debounce counts from the last deletion")
	assert.Equal(1, batcher.Flush(epoch.Add(5200*time.Millisecond)))
	assert.Equal(0, batcher.Flush(epoch.Add(time.Minute)))

	reports := outbox.Sent()
	require.Len(t, reports, 1)
	assert.Equal("log", reports[0].ChannelID)
	require.Len(t, reports[0].Data.Embeds, 1)
	assert.Equal("5 messages deleted", reports[0].Data.Embeds[0].Title)
}

func TestSteadyDeletionsFlushAfterMaxHold(t *testing.T) {
	batcher, outbox, clock := newBatcher(nil)

	var flushed int
	for i := 0; i < 40; i++ {
		clock.now = epoch.Add(time.Duration(i) * time.Second)
		batcher.Enqueue("guild", "general", deleted(fmt.Sprintf("%d", 100+i), "1", "hello"))
		flushed += batcher.Flush(clock.now)
	}
	assert.Equal(t, 1, flushed)
	assert.Len(t, outbox.Sent(), 1)
	assert.Equal(t, 1, batcher.Pending())
}

func TestChannelsAreBatchedSeparately(t *testing.T) {
	batcher, outbox, _ := newBatcher(nil)

	batcher.Enqueue("guild", "general", deleted("1", "1", "a"))
	batcher.Enqueue("guild", "random", deleted("2", "1", "b"))
	assert.Equal(t, 2, batcher.Pending())
	assert.Equal(t, 2, batcher.Flush(epoch.Add(DefaultDebounce)))
	assert.Len(t, outbox.Sent(), 2)
}

func TestBulkDeletionDeduplicatesAndFlushesWhenFull(t *testing.T) {
	assert := assert.New(t)
	batcher, outbox, _ := newBatcher(nil)

	messages := make([]*discordgo.Message, 0)
	for i := 0; i < MaxBatchSize+5; i++ {
		messages = append(messages, deleted(fmt.Sprintf("%d", 1000+i), "1", "spam"))
	}
	batcher.Enqueue("guild", "general", messages[0])
	assert.True(batcher.EnqueueBulk("guild", "general", messages))

	reports := outbox.Sent()
	require.Len(t, reports, 1, "a full batch is reported right away")
	require.Len(t, reports[0].Data.Files, 1)
	content, err := io.ReadAll(reports[0].Data.Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(MaxBatchSize, strings.Count(string(content), "\n"))

	assert.Equal(1, batcher.FlushAll())
	assert.Len(outbox.Sent(), 2)
}

func TestBatcherRespectsSettings(t *testing.T) {
	tests := []struct {
		name      string
		configure func(settings *models.GuildSettings)
		channelID string
	}{
		{
			name: "action disabled",
			configure: func(settings *models.GuildSettings) {
				settings.EnabledLogActions = []models.LogAction{models.LogActionMemberJoined}
			},
			channelID: "general",
		},
		{
			name: "no log channel",
			configure: func(settings *models.GuildSettings) {
				settings.LogChannelID = ""
			},
			channelID: "general",
		},
		{
			name: "ignored channel",
			configure: func(settings *models.GuildSettings) {
				settings.IgnoredLogChannelIDs = []string{"general"}
			},
			channelID: "general",
		},
		{name: "log channel itself", channelID: "log"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			batcher, outbox, _ := newBatcher(test.configure)

			assert.False(t, batcher.Enqueue("guild", test.channelID, deleted("1", "1", "a")))
			assert.Equal(t, 0, batcher.Flush(epoch.Add(time.Hour)))
			assert.Empty(t, outbox.Sent())
		})
	}
}
