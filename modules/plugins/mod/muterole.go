package mod

import (
	"sync"

	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// MuteRoleID returns the mute role known for $guildID without creating one
func (r *Resolver) MuteRoleID(guildID string) string {
	if r.settings != nil {
		if configured := r.settings.GuildSettings(guildID).MuteRoleID; configured != "" {
			return configured
		}
	}
	roleID, _ := r.muteRoles.Load(guildID)
	return roleID
}

// EnsureMuteRole returns the mute role of $guildID, creating it if needed, and
// makes sure every channel denies it sending, reacting and speaking
func (r *Resolver) EnsureMuteRole(guildID string) (string, error) {
	lock, _ := r.muteLocks.LoadOrCompute(guildID, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	lock.Lock()
	defer lock.Unlock()

	guild, err := r.actions.Guild(guildID)
	if err != nil {
		return "", err
	}

	roleID := findRole(guild, r.MuteRoleID(guildID), MuteRoleName)
	if roleID == "" {
		role, err := r.actions.CreateRole(guildID, MuteRoleName)
		if err != nil {
			return "", errors.Wrap(err, "unable to create mute role")
		}
		roleID = role.ID
		logger().WithField("GuildID", guildID).Infof("created mute role #%s", roleID)
	}
	r.muteRoles.Store(guildID, roleID)

	channels, err := r.actions.Channels(guildID)
	if err != nil {
		return roleID, err
	}
	for _, channel := range channels {
		if hasOverwrite(channel, roleID) {
			continue
		}
		err = r.actions.DenyRole(channel.ID, roleID, platform.MuteRoleDeny)
		if err != nil {
			logger().WithField("GuildID", guildID).WithField("ChannelID", channel.ID).
				Warnf("unable to deny mute role: %s", err.Error())
		}
	}
	return roleID, nil
}

func findRole(guild *discordgo.Guild, roleID, name string) string {
	for _, role := range guild.Roles {
		if roleID != "" && role.ID == roleID {
			return role.ID
		}
	}
	for _, role := range guild.Roles {
		if role.Name == name {
			return role.ID
		}
	}
	return ""
}

func hasOverwrite(channel *discordgo.Channel, roleID string) bool {
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID == roleID && overwrite.Type == discordgo.PermissionOverwriteTypeRole {
			return true
		}
	}
	return false
}
