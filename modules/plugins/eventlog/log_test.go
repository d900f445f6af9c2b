package eventlog

import (
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/mod"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventLog(configure func(settings *models.GuildSettings)) (*EventLog, *recordingOutbox) {
	outbox := &recordingOutbox{}
	eventLog := NewEventLog(logSettings(configure), outbox)
	eventLog.now = func() time.Time { return epoch }
	return eventLog, outbox
}

func onlyEmbed(t *testing.T, outbox *recordingOutbox) *discordgo.MessageEmbed {
	reports := outbox.Sent()
	require.Len(t, reports, 1)
	assert.Equal(t, "log", reports[0].ChannelID)
	require.Len(t, reports[0].Data.Embeds, 1)
	return reports[0].Data.Embeds[0]
}

func TestMessageEdited(t *testing.T) {
	eventLog, outbox := newEventLog(nil)

	before := deleted("1", "1", "helo")
	after := deleted("1", "1", "hello")
	assert.True(t, eventLog.MessageEdited("guild", before, after))

	embed := onlyEmbed(t, outbox)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "helo", embed.Fields[0].Value)
	assert.Equal(t, "hello", embed.Fields[1].Value)
}

func TestMessageEditedSkips(t *testing.T) {
	eventLog, outbox := newEventLog(func(settings *models.GuildSettings) {
		settings.IgnoredLogChannelIDs = []string{"ignored"}
	})

	same := deleted("1", "1", "hello")
	assert.False(t, eventLog.MessageEdited("guild", same, same), "embed only updates change nothing")

	ignored := deleted("2", "1", "new")
	ignored.ChannelID = "ignored"
	assert.False(t, eventLog.MessageEdited("guild", nil, ignored))

	bot := deleted("3", "1", "new")
	bot.Author.Bot = true
	assert.False(t, eventLog.MessageEdited("guild", nil, bot))
	assert.Empty(t, outbox.Sent())
}

func TestMemberJoined(t *testing.T) {
	assert := assert.New(t)
	eventLog, outbox := newEventLog(nil)

	entry := models.JoinlogEntry{
		GuildID:                   "guild",
		UserID:                    "1",
		JoinedAt:                  epoch,
		AccountCreatedAt:          epoch.Add(-2 * time.Hour),
		Attribution:               models.Attribution{Kind: models.AttributionInvite, Code: "abc"},
		InviteCodeCreatedByUserID: "2",
	}
	assert.True(eventLog.MemberJoined(entry, &discordgo.User{ID: "1", Username: "newbie"}))

	embed := onlyEmbed(t, outbox)
	require.Len(t, embed.Fields, 3)
	assert.Contains(embed.Fields[0].Value, "2 hours before joining")
	assert.Equal("`abc` created by <@2>", embed.Fields[1].Value)
	assert.Equal("New account", embed.Fields[2].Value)
}

func TestMemberJoinedWithoutInvitePermission(t *testing.T) {
	eventLog, outbox := newEventLog(nil)

	entry := models.JoinlogEntry{
		GuildID:          "guild",
		UserID:           "1",
		JoinedAt:         epoch,
		AccountCreatedAt: epoch.Add(-365 * 24 * time.Hour),
		Attribution:      models.Attribution{Kind: models.AttributionNoPermission},
	}
	assert.True(t, eventLog.MemberJoined(entry, &discordgo.User{ID: "1", Username: "veteran"}))
	assert.Len(t, onlyEmbed(t, outbox).Fields, 1)
}

func TestMemberUpdated(t *testing.T) {
	assert := assert.New(t)
	eventLog, outbox := newEventLog(nil)

	user := &discordgo.User{ID: "1", Username: "member"}
	before := &discordgo.Member{User: user, Nick: "old", Roles: []string{"a", "b"}}
	after := &discordgo.Member{User: user, Nick: "new", Roles: []string{"b", "c"}}
	assert.True(eventLog.MemberUpdated("guild", before, after))

	embed := onlyEmbed(t, outbox)
	require.Len(t, embed.Fields, 3)
	assert.Equal("old → new", embed.Fields[0].Value)
	assert.Equal("<@&c>", embed.Fields[1].Value)
	assert.Equal("<@&a>", embed.Fields[2].Value)

	assert.False(eventLog.MemberUpdated("guild", after, after))
}

func TestMemberLeft(t *testing.T) {
	eventLog, outbox := newEventLog(nil)

	assert.True(t, eventLog.MemberLeft("guild", &discordgo.User{ID: "1"}, epoch.Add(-3*24*time.Hour)))
	embed := onlyEmbed(t, outbox)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "3 days ago", embed.Fields[0].Value)
}

func TestPunishmentLogs(t *testing.T) {
	assert := assert.New(t)
	eventLog, outbox := newEventLog(nil)

	outcome := mod.Outcome{
		Signal: mod.Signal{
			GuildID:  "guild",
			UserID:   "1",
			Kind:     models.PunishmentRoleMute,
			Duration: 10 * time.Minute,
			Reason:   models.ReasonSpam,
			Detail:   "links",
		},
		Applied: models.PunishmentRoleMute,
	}
	assert.True(eventLog.PunishmentApplied(outcome))
	embed := onlyEmbed(t, outbox)
	require.Len(t, embed.Fields, 4)
	assert.Equal("role_mute", embed.Fields[0].Value)
	assert.Equal("spam", embed.Fields[1].Value)
	assert.Equal("10 minutes", embed.Fields[2].Value)

	outcome.Skipped = true
	assert.False(eventLog.PunishmentApplied(outcome))

	assert.True(eventLog.PunishmentReversed(models.PendingPunishment{
		GuildID: "guild", UserID: "1", Kind: models.PunishmentBan, Reason: models.ReasonRaid, CreatedAt: epoch.Add(-time.Hour),
	}))
	assert.Len(outbox.Sent(), 2)
}

func TestPunishmentLogDisabled(t *testing.T) {
	eventLog, outbox := newEventLog(func(settings *models.GuildSettings) {
		settings.EnabledLogActions = nil
	})

	assert.False(t, eventLog.PunishmentApplied(mod.Outcome{
		Signal:  mod.Signal{GuildID: "guild", UserID: "1", Reason: models.ReasonSpam},
		Applied: models.PunishmentKick,
	}))
	assert.Empty(t, outbox.Sent())
}
