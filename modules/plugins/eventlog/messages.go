package eventlog

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultMessageCacheSize = 50000
	DefaultMessageCacheTTL  = 24 * time.Hour
)

// MessageCache remembers recent messages so deletions and edits can be
// reported with their content, the platform only sends ids on delete
type MessageCache struct {
	messages *expirable.LRU[string, *discordgo.Message]
}

func NewMessageCache(size int, ttl time.Duration) *MessageCache {
	if size <= 0 {
		size = DefaultMessageCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultMessageCacheTTL
	}
	return &MessageCache{
		messages: expirable.NewLRU[string, *discordgo.Message](size, nil, ttl),
	}
}

func (c *MessageCache) Add(msg *discordgo.Message) {
	if msg == nil || msg.ID == "" {
		return
	}
	copied := *msg
	c.messages.Add(msg.ID, &copied)
}

// Update stores the edited $msg and returns the cached version from before the edit.
// Partial updates without an author keep the cached author and timestamp.
func (c *MessageCache) Update(msg *discordgo.Message) (*discordgo.Message, bool) {
	if msg == nil || msg.ID == "" {
		return nil, false
	}
	before, ok := c.messages.Get(msg.ID)
	updated := *msg
	if ok {
		if updated.Author == nil {
			updated.Author = before.Author
		}
		if updated.Timestamp.IsZero() {
			updated.Timestamp = before.Timestamp
		}
		if updated.GuildID == "" {
			updated.GuildID = before.GuildID
		}
	}
	c.messages.Add(msg.ID, &updated)
	return before, ok
}

func (c *MessageCache) Get(messageID string) (*discordgo.Message, bool) {
	return c.messages.Get(messageID)
}

// Remove drops the message and returns it if it was cached
func (c *MessageCache) Remove(messageID string) (*discordgo.Message, bool) {
	msg, ok := c.messages.Peek(messageID)
	if ok {
		c.messages.Remove(messageID)
	}
	return msg, ok
}

func (c *MessageCache) Len() int {
	return c.messages.Len()
}
