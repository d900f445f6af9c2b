package automod

import (
	"fmt"
	"time"

	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
)

// RaidDetector watches guild wide event rates, a regular raid is fed by
// externally signaled events such as bans, rapid joins by member joins
type RaidDetector struct {
	registry *Registry
	settings SettingsProvider
	punisher Punisher
}

func NewRaidDetector(registry *Registry, settings SettingsProvider, punisher Punisher) *RaidDetector {
	return &RaidDetector{
		registry: registry,
		settings: settings,
		punisher: punisher,
	}
}

// RecordRaidEvent records a raid event caused by $userID
func (d *RaidDetector) RecordRaidEvent(guildID, userID string, at time.Time) bool {
	config := d.settings.GuildSettings(guildID).Raid
	state := d.registry.Get(guildID)
	return d.record(state, state.raid, config, userID, at, models.ReasonRaid)
}

// RecordJoin records a member join
func (d *RaidDetector) RecordJoin(guildID, userID string, at time.Time) bool {
	config := d.settings.GuildSettings(guildID).RapidJoin
	state := d.registry.Get(guildID)
	return d.record(state, state.rapidJoin, config, userID, at, models.ReasonRapidJoin)
}

func (d *RaidDetector) record(state *GuildState, window *Window, config models.RaidPreventionSettings, userID string, at time.Time, reason models.PunishmentReason) bool {
	if !config.Enabled {
		return false
	}

	state.raidLock.Lock()
	triggered, users := window.Record(userID, at, 1, config.TimeInterval.Duration, config.RequiredInstances)
	state.raidLock.Unlock()
	if !triggered {
		return false
	}

	metrics.RaidTriggers.WithLabelValues(string(reason)).Inc()
	detail := fmt.Sprintf("%d events within %s", config.RequiredInstances, config.TimeInterval.Duration.String())
	logger().WithField("GuildID", state.GuildID).Warnf("%s incident: %s, %d users involved", reason, detail, len(users))
	if config.Punishment != models.PunishmentNothing {
		d.punisher.ResolveIncident(state.GuildID, users, config.Punishment, config.PunishmentDuration.Duration, reason, detail)
	}
	return true
}
