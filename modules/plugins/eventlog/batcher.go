package eventlog

import (
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
)

const (
	DefaultDebounce = 5 * time.Second
	DefaultMaxHold  = 30 * time.Second
	// a batch reaching this size is reported right away
	MaxBatchSize = 100
)

type batch struct {
	guildID   string
	channelID string
	messages  []*discordgo.Message
	seen      map[string]bool
	openedAt  time.Time
	lastAt    time.Time
}

// Batcher collects deleted messages per channel and reports each burst
// once the channel was quiet for Debounce or the batch is older than MaxHold
type Batcher struct {
	sync.Mutex
	batches  map[string]*batch
	settings SettingsProvider
	outbox   Outbox

	Debounce time.Duration
	MaxHold  time.Duration

	now   func() time.Time
	async func(func())
}

func NewBatcher(settings SettingsProvider, outbox Outbox) *Batcher {
	return &Batcher{
		batches:  make(map[string]*batch),
		settings: settings,
		outbox:   outbox,
		Debounce: DefaultDebounce,
		MaxHold:  DefaultMaxHold,
		now:      time.Now,
		async:    helpers.Go,
	}
}

func (b *Batcher) accepts(guildID, channelID string) bool {
	settings := b.settings.GuildSettings(guildID)
	return settings.LogEnabled(models.LogActionMessageDeleted) &&
		!settings.LogIgnored(channelID) &&
		settings.LogChannelID != channelID
}

// Enqueue adds a deleted message to the open batch of its channel.
// $msg may only carry an id if its content was not cached.
func (b *Batcher) Enqueue(guildID, channelID string, msg *discordgo.Message) bool {
	return b.EnqueueBulk(guildID, channelID, []*discordgo.Message{msg})
}

// EnqueueBulk adds several deleted messages of one channel, duplicates are ignored
func (b *Batcher) EnqueueBulk(guildID, channelID string, messages []*discordgo.Message) bool {
	if guildID == "" || channelID == "" || len(messages) == 0 || !b.accepts(guildID, channelID) {
		return false
	}
	now := b.now()

	full := make([]*batch, 0)
	b.Lock()
	current, ok := b.batches[channelID]
	if !ok {
		current = &batch{guildID: guildID, channelID: channelID, seen: make(map[string]bool), openedAt: now}
		b.batches[channelID] = current
	}
	for _, msg := range messages {
		if msg == nil || msg.ID == "" || current.seen[msg.ID] {
			continue
		}
		current.seen[msg.ID] = true
		current.messages = append(current.messages, msg)
		current.lastAt = now

		if len(current.messages) >= MaxBatchSize {
			full = append(full, current)
			current = &batch{guildID: guildID, channelID: channelID, seen: make(map[string]bool), openedAt: now}
			b.batches[channelID] = current
		}
	}
	if len(current.messages) == 0 {
		delete(b.batches, channelID)
	}
	b.Unlock()

	for _, reportBatch := range full {
		reportBatch := reportBatch
		b.async(func() {
			b.report(reportBatch)
		})
	}
	return true
}

// Flush reports every batch that is due at $now and returns how many were reported
func (b *Batcher) Flush(now time.Time) int {
	due := make([]*batch, 0)
	b.Lock()
	for channelID, current := range b.batches {
		if now.Sub(current.lastAt) >= b.Debounce || now.Sub(current.openedAt) >= b.MaxHold {
			due = append(due, current)
			delete(b.batches, channelID)
		}
	}
	b.Unlock()

	for _, current := range due {
		b.report(current)
	}
	return len(due)
}

// FlushAll reports every open batch regardless of its age
func (b *Batcher) FlushAll() int {
	b.Lock()
	open := b.batches
	b.batches = make(map[string]*batch)
	b.Unlock()

	for _, current := range open {
		b.report(current)
	}
	return len(open)
}

// Pending returns the number of open batches
func (b *Batcher) Pending() int {
	b.Lock()
	defer b.Unlock()

	return len(b.batches)
}

func (b *Batcher) report(current *batch) {
	settings := b.settings.GuildSettings(current.guildID)
	if settings.LogChannelID == "" {
		return
	}
	data := FormatDeleted(current.channelID, current.messages)
	if !b.outbox.Enqueue(settings.LogChannelID, data) {
		logger().WithField("GuildID", current.guildID).WithField("ChannelID", current.channelID).
			Warnf("dropped report of %d deleted messages", len(current.messages))
	}
}
