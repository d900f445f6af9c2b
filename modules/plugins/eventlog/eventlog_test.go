package eventlog

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	cache.SetLogger(logrus.New())
	os.Exit(m.Run())
}

var epoch = time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

func syncRun(fn func()) { fn() }

type sent struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

type recordingOutbox struct {
	sync.Mutex
	sent []sent
}

func (o *recordingOutbox) Enqueue(channelID string, data *discordgo.MessageSend) bool {
	o.Lock()
	defer o.Unlock()

	o.sent = append(o.sent, sent{ChannelID: channelID, Data: data})
	return true
}

func (o *recordingOutbox) Sent() []sent {
	o.Lock()
	defer o.Unlock()

	return append([]sent(nil), o.sent...)
}

func logSettings(configure func(settings *models.GuildSettings)) *helpers.SettingsStore {
	settings := helpers.DefaultGuildSettings()
	settings.GuildID = "guild"
	settings.LogChannelID = "log"
	settings.EnabledLogActions = []models.LogAction{
		models.LogActionMessageDeleted,
		models.LogActionMessageEdited,
		models.LogActionMemberJoined,
		models.LogActionMemberLeft,
		models.LogActionMemberUpdated,
		models.LogActionPunishment,
	}
	if configure != nil {
		configure(&settings)
	}
	store := helpers.NewSettingsStore()
	store.Set(settings)
	return store
}

func deleted(id, authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "general",
		GuildID:   "guild",
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "user" + authorID},
		Timestamp: epoch,
	}
}
