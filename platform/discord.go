package platform

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// Discord implements Platform on a discordgo session
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) BotUserID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) Guild(guildID string) (*discordgo.Guild, error) {
	guild, err := d.session.State.Guild(guildID)
	if err == nil {
		return guild, nil
	}
	guild, err = d.session.Guild(guildID)
	return guild, errors.Wrap(err, "unable to get guild "+guildID)
}

func (d *Discord) Member(guildID, userID string) (*discordgo.Member, error) {
	member, err := d.session.State.Member(guildID, userID)
	if err == nil {
		return member, nil
	}
	member, err = d.session.GuildMember(guildID, userID)
	return member, errors.Wrap(err, "unable to get member "+userID)
}

func (d *Discord) CachedGuild(guildID string) (*discordgo.Guild, bool) {
	guild, err := d.session.State.Guild(guildID)
	return guild, err == nil
}

func (d *Discord) CachedMember(guildID, userID string) (*discordgo.Member, bool) {
	member, err := d.session.State.Member(guildID, userID)
	return member, err == nil
}

func (d *Discord) Channels(guildID string) ([]*discordgo.Channel, error) {
	guild, err := d.session.State.Guild(guildID)
	if err == nil && len(guild.Channels) > 0 {
		return guild.Channels, nil
	}
	channels, err := d.session.GuildChannels(guildID)
	return channels, errors.Wrap(err, "unable to get channels of "+guildID)
}

// Invites fetches the invites, giving up when $ctx is done
func (d *Discord) Invites(ctx context.Context, guildID string) ([]*discordgo.Invite, error) {
	type result struct {
		invites []*discordgo.Invite
		err     error
	}
	done := make(chan result, 1)
	go func() {
		invites, err := d.session.GuildInvites(guildID)
		done <- result{invites, err}
	}()
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "fetching invites of "+guildID)
	case r := <-done:
		return r.invites, errors.Wrap(r.err, "unable to get invites of "+guildID)
	}
}

// BanExecutor looks up who banned $targetID in the most recent audit log entries
func (d *Discord) BanExecutor(ctx context.Context, guildID, targetID string) (string, error) {
	type result struct {
		log *discordgo.GuildAuditLog
		err error
	}
	done := make(chan result, 1)
	go func() {
		log, err := d.session.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionMemberBanAdd), 10)
		done <- result{log, err}
	}()
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "fetching audit log of "+guildID)
	case r := <-done:
		if r.err != nil {
			return "", errors.Wrap(r.err, "unable to get audit log of "+guildID)
		}
		for _, entry := range r.log.AuditLogEntries {
			if entry.TargetID == targetID {
				return entry.UserID, nil
			}
		}
		return "", nil
	}
}

func (d *Discord) SendMessage(channelID string, data *discordgo.MessageSend) error {
	_, err := d.session.ChannelMessageSendComplex(channelID, data)
	return errors.Wrap(err, "unable to send message to "+channelID)
}

func (d *Discord) DeleteMessage(channelID, messageID string) error {
	return errors.Wrap(d.session.ChannelMessageDelete(channelID, messageID), "unable to delete message "+messageID)
}

func (d *Discord) Kick(guildID, userID, reason string) error {
	return errors.Wrap(d.session.GuildMemberDeleteWithReason(guildID, userID, reason), "unable to kick "+userID)
}

func (d *Discord) Ban(guildID, userID, reason string) error {
	return errors.Wrap(d.session.GuildBanCreateWithReason(guildID, userID, reason, 1), "unable to ban "+userID)
}

func (d *Discord) Unban(guildID, userID string) error {
	return errors.Wrap(d.session.GuildBanDelete(guildID, userID), "unable to unban "+userID)
}

func (d *Discord) VoiceMute(guildID, userID string, mute bool) error {
	return errors.Wrap(d.session.GuildMemberMute(guildID, userID, mute), "unable to change voice mute of "+userID)
}

func (d *Discord) Deafen(guildID, userID string, deafen bool) error {
	return errors.Wrap(d.session.GuildMemberDeafen(guildID, userID, deafen), "unable to change deafen of "+userID)
}

func (d *Discord) AddRole(guildID, userID, roleID string) error {
	return errors.Wrap(d.session.GuildMemberRoleAdd(guildID, userID, roleID), "unable to add role to "+userID)
}

func (d *Discord) RemoveRole(guildID, userID, roleID string) error {
	return errors.Wrap(d.session.GuildMemberRoleRemove(guildID, userID, roleID), "unable to remove role from "+userID)
}

func (d *Discord) CreateRole(guildID, name string) (*discordgo.Role, error) {
	mentionable := false
	role, err := d.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: &mentionable,
	})
	return role, errors.Wrap(err, "unable to create role in "+guildID)
}

func (d *Discord) DenyRole(channelID, roleID string, deny int64) error {
	err := d.session.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, 0, deny)
	return errors.Wrap(err, "unable to set permissions in "+channelID)
}
