// Package platform is the action surface the moderation engine talks to.
// Discord implements it on top of a discordgo session, Fake records calls for tests.
package platform

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// MuteRoleDeny is the permission set a mute role denies in every channel
const MuteRoleDeny = discordgo.PermissionSendMessages | discordgo.PermissionAddReactions | discordgo.PermissionVoiceSpeak

// Lookup reads guilds, members and channels, from the state cache where possible
type Lookup interface {
	BotUserID() string
	Guild(guildID string) (*discordgo.Guild, error)
	Member(guildID, userID string) (*discordgo.Member, error)
	Channels(guildID string) ([]*discordgo.Channel, error)
	// CachedGuild and CachedMember only read the state cache, they never issue a request
	CachedGuild(guildID string) (*discordgo.Guild, bool)
	CachedMember(guildID, userID string) (*discordgo.Member, bool)
}

// Sender delivers log messages
type Sender interface {
	SendMessage(channelID string, data *discordgo.MessageSend) error
}

// InviteSource lists the invites of a guild
type InviteSource interface {
	Lookup
	Invites(ctx context.Context, guildID string) ([]*discordgo.Invite, error)
}

// Moderator mutates members, messages and roles
type Moderator interface {
	DeleteMessage(channelID, messageID string) error
	Kick(guildID, userID, reason string) error
	Ban(guildID, userID, reason string) error
	Unban(guildID, userID string) error
	VoiceMute(guildID, userID string, mute bool) error
	Deafen(guildID, userID string, deafen bool) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	CreateRole(guildID, name string) (*discordgo.Role, error)
	DenyRole(channelID, roleID string, deny int64) error
}

// Platform is everything the engine needs from discord
type Platform interface {
	Lookup
	Sender
	Moderator
	Invites(ctx context.Context, guildID string) ([]*discordgo.Invite, error)
	BanExecutor(ctx context.Context, guildID, targetID string) (string, error)
}
