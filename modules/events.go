package modules

import (
	"context"
	"time"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/invites"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

const joinAttributionTimeout = 10 * time.Second

func (e *Engine) isAdmin(guildID, userID string, settings models.GuildSettings) bool {
	guild, ok := e.platform.CachedGuild(guildID)
	if !ok {
		return false
	}
	member, ok := e.platform.CachedMember(guildID, userID)
	if !ok {
		return false
	}
	return helpers.IsGuildAdmin(guild, member, settings)
}

func (e *Engine) deleteMessage(channelID, messageID, cause string) {
	e.async(func() {
		err := e.platform.DeleteMessage(channelID, messageID)
		if err != nil && !helpers.IsTargetGone(err) {
			logger().WithField("ChannelID", channelID).Warnf("unable to delete %s message: %s", cause, err.Error())
		}
	})
}

func (e *Engine) skipsMessage(msg *discordgo.Message) bool {
	return msg == nil || msg.GuildID == "" || msg.Author == nil || msg.Author.Bot ||
		msg.Author.ID == e.platform.BotUserID()
}

// OnMessageReceived runs slowmode, banned phrases and spam detection on a new message
func (e *Engine) OnMessageReceived(msg *discordgo.Message) {
	metrics.EventsReceived.WithLabelValues("message_create").Inc()
	if msg != nil && msg.GuildID != "" {
		e.messages.Add(msg)
	}
	if e.skipsMessage(msg) {
		return
	}

	now := e.now()
	at := msg.Timestamp
	if at.IsZero() {
		at = now
	}
	settings := e.settings.GuildSettings(msg.GuildID)

	if settings.Slowmode.Enabled &&
		!e.slowmode.Allow(msg.GuildID, msg.Author.ID, settings.Slowmode.Messages, settings.Slowmode.Interval.Duration, now) &&
		!e.isAdmin(msg.GuildID, msg.Author.ID, settings) {
		metrics.SlowmodeDeletions.Inc()
		e.deleteMessage(msg.ChannelID, msg.ID, "slowmode")
		return
	}

	if _, matched := e.phrases.Enforce(msg); matched {
		return
	}

	e.spam.HandleMentionVotes(msg)
	e.spam.HandleMessage(msg, at)
}

// OnMessageUpdated logs the edit and checks the new content for banned phrases
func (e *Engine) OnMessageUpdated(msg *discordgo.Message) {
	metrics.EventsReceived.WithLabelValues("message_update").Inc()
	if msg == nil || msg.ID == "" {
		return
	}
	before, _ := e.messages.Update(msg)
	current, ok := e.messages.Get(msg.ID)
	if !ok {
		current = msg
	}
	if e.skipsMessage(current) {
		return
	}
	// embeds resolving also trigger updates
	if before != nil && before.Content == current.Content {
		return
	}

	e.eventLog.MessageEdited(current.GuildID, before, current)
	e.phrases.Enforce(current)
}

// OnMessageDeleted queues the deleted message for the next deletion report
func (e *Engine) OnMessageDeleted(guildID, channelID, messageID string) {
	metrics.EventsReceived.WithLabelValues("message_delete").Inc()
	e.deleted.Enqueue(guildID, channelID, e.deletedMessage(guildID, channelID, messageID))
}

// OnMessagesBulkDeleted queues all messages of a bulk deletion at once
func (e *Engine) OnMessagesBulkDeleted(guildID, channelID string, messageIDs []string) {
	metrics.EventsReceived.WithLabelValues("message_delete_bulk").Inc()
	messages := make([]*discordgo.Message, 0, len(messageIDs))
	for _, messageID := range messageIDs {
		messages = append(messages, e.deletedMessage(guildID, channelID, messageID))
	}
	e.deleted.EnqueueBulk(guildID, channelID, messages)
}

func (e *Engine) deletedMessage(guildID, channelID, messageID string) *discordgo.Message {
	if msg, ok := e.messages.Remove(messageID); ok {
		return msg
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID, GuildID: guildID}
}

// OnUserJoined feeds the rapid join detector and logs the join with its invite
func (e *Engine) OnUserJoined(member *discordgo.Member) {
	metrics.EventsReceived.WithLabelValues("member_add").Inc()
	if member == nil || member.User == nil || member.GuildID == "" {
		return
	}
	now := e.now()
	e.raids.RecordJoin(member.GuildID, member.User.ID, now)

	state := e.registry.Get(member.GuildID)
	e.async(func() {
		entry := models.JoinlogEntry{
			GuildID:  member.GuildID,
			UserID:   member.User.ID,
			JoinedAt: member.JoinedAt,
		}
		if entry.JoinedAt.IsZero() {
			entry.JoinedAt = now
		}
		if created, err := discordgo.SnowflakeTimestamp(member.User.ID); err == nil {
			entry.AccountCreatedAt = created
		}

		ctx, cancel := context.WithTimeout(context.Background(), joinAttributionTimeout)
		defer cancel()
		if state.Invites != nil {
			attribution, err := state.Invites.Attribute(ctx, member.User)
			if errors.Cause(err) == invites.ErrNotSeeded {
				helpers.RelaxLog(state.Invites.Seed(ctx), "seeding invites of "+member.GuildID)
			} else if err != nil {
				logger().WithField("GuildID", member.GuildID).Warnf("unable to attribute join: %s", err.Error())
			}
			entry.Attribution = attribution
			if attribution.Kind == models.AttributionInvite {
				entry.InviteCodeCreatedByUserID = state.Invites.Inviter(attribution.Code)
			}
		}

		e.eventLog.MemberJoined(entry, member.User)
	})
}

// OnUserLeft logs a member leaving or being kicked
func (e *Engine) OnUserLeft(member *discordgo.Member) {
	metrics.EventsReceived.WithLabelValues("member_remove").Inc()
	if member == nil || member.User == nil || member.GuildID == "" {
		return
	}
	e.eventLog.MemberLeft(member.GuildID, member.User, member.JoinedAt)
}

// OnUserUpdated logs nickname and role changes. A manually removed mute role
// cancels the pending automatic unmute.
func (e *Engine) OnUserUpdated(before, after *discordgo.Member) {
	metrics.EventsReceived.WithLabelValues("member_update").Inc()
	if after == nil || after.User == nil || after.GuildID == "" {
		return
	}
	if before == nil {
		return
	}

	if muteRoleID := e.resolver.MuteRoleID(after.GuildID); muteRoleID != "" &&
		hasRole(before, muteRoleID) && !hasRole(after, muteRoleID) {
		if e.timers.Cancel(after.GuildID, after.User.ID, models.PunishmentRoleMute) {
			logger().WithField("GuildID", after.GuildID).WithField("UserID", after.User.ID).
				Info("mute role was removed manually, cancelled automatic unmute")
		}
	}
	e.eventLog.MemberUpdated(after.GuildID, before, after)
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, memberRoleID := range member.Roles {
		if memberRoleID == roleID {
			return true
		}
	}
	return false
}

// OnUserBanned counts bans issued by someone other than the bot as raid events of the issuer
func (e *Engine) OnUserBanned(guildID string, user *discordgo.User) {
	metrics.EventsReceived.WithLabelValues("ban_add").Inc()
	if guildID == "" || user == nil {
		return
	}
	now := e.now()
	e.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), invites.DefaultFetchTimeout)
		defer cancel()

		executorID, err := e.platform.BanExecutor(ctx, guildID, user.ID)
		if err != nil {
			if !helpers.IsMissingPermissions(err) {
				logger().WithField("GuildID", guildID).Warnf("unable to find ban executor: %s", err.Error())
			}
			return
		}
		if executorID == "" || executorID == e.platform.BotUserID() {
			return
		}
		e.raids.RecordRaidEvent(guildID, executorID, now)
	})
}

// OnUserUnbanned cancels a pending automatic unban after a manual one
func (e *Engine) OnUserUnbanned(guildID string, user *discordgo.User) {
	metrics.EventsReceived.WithLabelValues("ban_remove").Inc()
	if guildID == "" || user == nil {
		return
	}
	if e.timers.Cancel(guildID, user.ID, models.PunishmentBan) {
		logger().WithField("GuildID", guildID).WithField("UserID", user.ID).
			Info("user was unbanned manually, cancelled automatic unban")
	}
}

// OnGuildAvailable prepares the state of a guild and seeds its invite cache
func (e *Engine) OnGuildAvailable(guild *discordgo.Guild) {
	metrics.EventsReceived.WithLabelValues("guild_available").Inc()
	if guild == nil || guild.ID == "" {
		return
	}
	state := e.registry.Get(guild.ID)
	if state.Invites == nil || state.Invites.Seeded() {
		return
	}
	e.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), joinAttributionTimeout)
		defer cancel()

		err := state.Invites.Seed(ctx)
		if err != nil {
			logger().WithField("GuildID", guild.ID).Warnf("unable to seed invites: %s", err.Error())
		}
	})
}

// OnGuildUnavailable keeps the state, the guild usually returns after an outage
func (e *Engine) OnGuildUnavailable(guildID string) {
	metrics.EventsReceived.WithLabelValues("guild_unavailable").Inc()
	logger().WithField("GuildID", guildID).Warn("guild became unavailable")
}

// OnGuildJoined is called when the bot was added to a guild
func (e *Engine) OnGuildJoined(guild *discordgo.Guild) {
	if guild == nil {
		return
	}
	logger().WithField("GuildID", guild.ID).Infof("joined guild %s", guild.Name)
	e.OnGuildAvailable(guild)
}

// OnGuildLeft discards the state of a guild and its pending reversals
func (e *Engine) OnGuildLeft(guildID string) {
	metrics.EventsReceived.WithLabelValues("guild_delete").Inc()
	if guildID == "" {
		return
	}
	e.registry.Remove(guildID)
	cancelled := e.timers.CancelGuild(guildID)
	logger().WithField("GuildID", guildID).Infof("left guild, dropped %d pending reversals", cancelled)
}
