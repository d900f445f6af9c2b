package automod

import (
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/mod"
	"github.com/sirupsen/logrus"
)

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "automod")
}

// SettingsProvider is the read-only guild configuration
type SettingsProvider interface {
	GuildSettings(guildID string) models.GuildSettings
}

// Punisher is the escalation resolver
type Punisher interface {
	Punish(guildID, userID string, kind models.PunishmentKind, duration time.Duration, reason models.PunishmentReason, detail string) mod.Outcome
	ResolveIncident(guildID string, userIDs []string, kind models.PunishmentKind, duration time.Duration, reason models.PunishmentReason, detail string) []mod.Outcome
}

// MessageDeleter removes offending messages
type MessageDeleter interface {
	DeleteMessage(channelID, messageID string) error
}
