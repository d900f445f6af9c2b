package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/mod"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
)

// EventLog renders guild events into the guild's log channel
type EventLog struct {
	settings SettingsProvider
	outbox   Outbox
	now      func() time.Time
}

func NewEventLog(settings SettingsProvider, outbox Outbox) *EventLog {
	return &EventLog{
		settings: settings,
		outbox:   outbox,
		now:      time.Now,
	}
}

// post sends $embed to the log channel if $action is enabled and $sourceChannelID is not ignored
func (l *EventLog) post(guildID string, action models.LogAction, sourceChannelID string, embed *discordgo.MessageEmbed) bool {
	settings := l.settings.GuildSettings(guildID)
	if !settings.LogEnabled(action) {
		return false
	}
	if sourceChannelID != "" && (settings.LogIgnored(sourceChannelID) || sourceChannelID == settings.LogChannelID) {
		return false
	}
	if embed.Timestamp == "" {
		embed.Timestamp = l.now().Format(time.RFC3339)
	}
	return l.outbox.Enqueue(settings.LogChannelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func userField(user *discordgo.User) string {
	if user == nil {
		return "unknown user"
	}
	return fmt.Sprintf("%s (<@%s>)", authorName(user), user.ID)
}

func relative(from, to time.Time) string {
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}

// MessageEdited logs the content change of a message, $before may be nil when it was not cached
func (l *EventLog) MessageEdited(guildID string, before, after *discordgo.Message) bool {
	if after == nil || after.Author == nil || after.Author.Bot {
		return false
	}
	oldContent := "*(not cached)*"
	if before != nil {
		if before.Content == after.Content {
			return false
		}
		oldContent = before.Content
	}
	if oldContent == "" {
		oldContent = "*(empty)*"
	}
	newContent := after.Content
	if newContent == "" {
		newContent = "*(empty)*"
	}

	return l.post(guildID, models.LogActionMessageEdited, after.ChannelID, &discordgo.MessageEmbed{
		Title:       "Message edited",
		Description: fmt.Sprintf("%s in <#%s>", userField(after.Author), after.ChannelID),
		Color:       colorEdited,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Before", Value: truncate(oldContent, embedFieldValueLimit)},
			{Name: "After", Value: truncate(newContent, embedFieldValueLimit)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Message #" + after.ID},
	})
}

// MemberJoined logs a join with the account age and the attributed invite
func (l *EventLog) MemberJoined(entry models.JoinlogEntry, user *discordgo.User) bool {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Account created", Value: entry.AccountCreatedAt.UTC().Format(time.RFC1123) +
			" (" + humanize.RelTime(entry.AccountCreatedAt, entry.JoinedAt, "before joining", "after joining") + ")"},
	}
	if invite := entry.Attribution.String(); invite != "" {
		value := invite
		if entry.Attribution.Kind == models.AttributionInvite {
			value = "`" + invite + "`"
			if entry.InviteCodeCreatedByUserID != "" {
				value += " created by <@" + entry.InviteCodeCreatedByUserID + ">"
			}
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Invite", Value: value})
	}
	if entry.JoinedAt.Sub(entry.AccountCreatedAt) < 24*time.Hour {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Warning", Value: "New account"})
	}

	return l.post(entry.GuildID, models.LogActionMemberJoined, "", &discordgo.MessageEmbed{
		Title:       "Member joined",
		Description: userField(user),
		Color:       colorJoined,
		Fields:      fields,
		Timestamp:   entry.JoinedAt.Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "User #" + entry.UserID},
	})
}

// MemberLeft logs a leave, $joinedAt may be zero when unknown
func (l *EventLog) MemberLeft(guildID string, user *discordgo.User, joinedAt time.Time) bool {
	if user == nil {
		return false
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Member left",
		Description: userField(user),
		Color:       colorLeft,
		Footer:      &discordgo.MessageEmbedFooter{Text: "User #" + user.ID},
	}
	if !joinedAt.IsZero() {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Joined", Value: humanize.RelTime(joinedAt, l.now(), "ago", "from now")},
		}
	}
	return l.post(guildID, models.LogActionMemberLeft, "", embed)
}

func roleDiff(before, after []string) (added, removed []string) {
	had := make(map[string]bool, len(before))
	for _, roleID := range before {
		had[roleID] = true
	}
	has := make(map[string]bool, len(after))
	for _, roleID := range after {
		has[roleID] = true
		if !had[roleID] {
			added = append(added, roleID)
		}
	}
	for _, roleID := range before {
		if !has[roleID] {
			removed = append(removed, roleID)
		}
	}
	return added, removed
}

func roleMentions(roleIDs []string) string {
	mentions := make([]string, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		mentions = append(mentions, "<@&"+roleID+">")
	}
	return strings.Join(mentions, ", ")
}

// MemberUpdated logs nickname and role changes, nothing is logged if neither changed
func (l *EventLog) MemberUpdated(guildID string, before, after *discordgo.Member) bool {
	if before == nil || after == nil || after.User == nil {
		return false
	}
	fields := make([]*discordgo.MessageEmbedField, 0)
	if before.Nick != after.Nick {
		oldNick, newNick := before.Nick, after.Nick
		if oldNick == "" {
			oldNick = "*(none)*"
		}
		if newNick == "" {
			newNick = "*(none)*"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Nickname", Value: oldNick + " → " + newNick})
	}
	added, removed := roleDiff(before.Roles, after.Roles)
	if len(added) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Roles added", Value: roleMentions(added)})
	}
	if len(removed) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Roles removed", Value: roleMentions(removed)})
	}
	if len(fields) == 0 {
		return false
	}

	return l.post(guildID, models.LogActionMemberUpdated, "", &discordgo.MessageEmbed{
		Title:       "Member updated",
		Description: userField(after.User),
		Color:       colorUpdated,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "User #" + after.User.ID},
	})
}

// PunishmentApplied logs a punishment dispatched by the resolver
func (l *EventLog) PunishmentApplied(outcome mod.Outcome) bool {
	if outcome.Skipped || outcome.Applied == models.PunishmentNothing {
		return false
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Punishment", Value: outcome.Applied.String(), Inline: true},
		{Name: "Reason", Value: string(outcome.Reason), Inline: true},
	}
	if outcome.Duration > 0 && outcome.Applied.Reversible() {
		now := l.now()
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Duration", Value: relative(now, now.Add(outcome.Duration)), Inline: true,
		})
	}
	if outcome.Detail != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: truncate(outcome.Detail, embedFieldValueLimit)})
	}

	return l.post(outcome.GuildID, models.LogActionPunishment, "", &discordgo.MessageEmbed{
		Title:       "Member punished",
		Description: "<@" + outcome.UserID + ">",
		Color:       colorPunished,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "User #" + outcome.UserID},
	})
}

// PunishmentReversed logs an expired temporary punishment
func (l *EventLog) PunishmentReversed(job models.PendingPunishment) bool {
	return l.post(job.GuildID, models.LogActionPunishment, "", &discordgo.MessageEmbed{
		Title:       "Punishment expired",
		Description: "<@" + job.UserID + ">",
		Color:       colorReversed,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Punishment", Value: job.Kind.String(), Inline: true},
			{Name: "Reason", Value: string(job.Reason), Inline: true},
			{Name: "Applied", Value: humanize.RelTime(job.CreatedAt, l.now(), "ago", "from now"), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "User #" + job.UserID},
	})
}
