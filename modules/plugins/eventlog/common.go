package eventlog

import (
	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "eventlog")
}

type SettingsProvider interface {
	GuildSettings(guildID string) models.GuildSettings
}

// Outbox accepts rendered log messages, usually an outbound.Queue
type Outbox interface {
	Enqueue(channelID string, data *discordgo.MessageSend) bool
}

const (
	colorDeleted  = 0xE74C3C
	colorEdited   = 0xF1C40F
	colorJoined   = 0x2ECC71
	colorLeft     = 0x95A5A6
	colorUpdated  = 0x3498DB
	colorPunished = 0xE67E22
	colorReversed = 0x0FADED
)
