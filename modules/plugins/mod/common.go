package mod

import (
	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/sirupsen/logrus"
)

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "mod")
}

// SettingsProvider is the read-only guild configuration
type SettingsProvider interface {
	GuildSettings(guildID string) models.GuildSettings
}
