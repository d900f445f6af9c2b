package helpers

import (
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
)

// HighestRolePosition returns the position of the highest role $member holds in $guild, 0 for @everyone
func HighestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	if guild == nil || member == nil {
		return 0
	}
	var highest int
	for _, role := range guild.Roles {
		for _, memberRoleID := range member.Roles {
			if role.ID == memberRoleID && role.Position > highest {
				highest = role.Position
			}
		}
	}
	return highest
}

// CanActOn is true if $actor is placed above $target in the role hierarchy of $guild
func CanActOn(guild *discordgo.Guild, actor *discordgo.Member, target *discordgo.Member) bool {
	if guild == nil || actor == nil || target == nil || target.User == nil {
		return false
	}
	if target.User.ID == guild.OwnerID {
		return false
	}
	if actor.User != nil && actor.User.ID == guild.OwnerID {
		return true
	}
	return HighestRolePosition(guild, actor) > HighestRolePosition(guild, target)
}

// MemberPermissions combines the permissions of @everyone and all roles of $member
func MemberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	var permissions int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			permissions |= role.Permissions
			continue
		}
		for _, memberRoleID := range member.Roles {
			if role.ID == memberRoleID {
				permissions |= role.Permissions
			}
		}
	}
	return permissions
}

// IsGuildAdmin is true for the owner, members with administrator or manage server and members with a configured admin role
func IsGuildAdmin(guild *discordgo.Guild, member *discordgo.Member, settings models.GuildSettings) bool {
	if guild == nil || member == nil {
		return false
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return true
	}
	permissions := MemberPermissions(guild, member)
	if permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator ||
		permissions&discordgo.PermissionManageServer == discordgo.PermissionManageServer {
		return true
	}
	for _, roleID := range member.Roles {
		if settings.IsAdminRole(roleID) {
			return true
		}
	}
	return false
}

// HasManageGuild is true if $member may list the invites of $guild
func HasManageGuild(guild *discordgo.Guild, member *discordgo.Member) bool {
	if guild == nil || member == nil {
		return false
	}
	if member.User != nil && member.User.ID == guild.OwnerID {
		return true
	}
	permissions := MemberPermissions(guild, member)
	return permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator ||
		permissions&discordgo.PermissionManageServer == discordgo.PermissionManageServer
}

// CompareSnowflakes orders discord ids numerically without parsing them
func CompareSnowflakes(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
