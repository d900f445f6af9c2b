package helpers

import (
	"testing"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      "guild",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "guild", Position: 0},
			{ID: "member", Position: 1},
			{ID: "moderator", Position: 3, Permissions: discordgo.PermissionKickMembers},
			{ID: "manager", Position: 4, Permissions: discordgo.PermissionManageServer},
			{ID: "admin", Position: 5, Permissions: discordgo.PermissionAdministrator},
		},
	}
}

func testMember(userID string, roleIDs ...string) *discordgo.Member {
	return &discordgo.Member{GuildID: "guild", User: &discordgo.User{ID: userID}, Roles: roleIDs}
}

func TestCanActOn(t *testing.T) {
	assert := assert.New(t)
	guild := testGuild()

	bot := testMember("bot", "moderator")
	assert.True(CanActOn(guild, bot, testMember("user", "member")))
	assert.True(CanActOn(guild, bot, testMember("user")))
	assert.False(CanActOn(guild, bot, testMember("peer", "moderator")), "equal position")
	assert.False(CanActOn(guild, bot, testMember("admin", "admin")))
	assert.False(CanActOn(guild, testMember("admin", "admin"), testMember("owner")), "owner is untouchable")
	assert.True(CanActOn(guild, testMember("owner"), testMember("admin", "admin")))
	assert.False(CanActOn(guild, bot, nil))
	assert.False(CanActOn(nil, bot, testMember("user")))
}

func TestHighestRolePosition(t *testing.T) {
	guild := testGuild()

	assert.Equal(t, 4, HighestRolePosition(guild, testMember("user", "member", "manager")))
	assert.Equal(t, 0, HighestRolePosition(guild, testMember("user")))
	assert.Equal(t, 0, HighestRolePosition(guild, testMember("user", "deleted-role")))
}

func TestIsGuildAdmin(t *testing.T) {
	assert := assert.New(t)
	guild := testGuild()
	settings := models.GuildSettings{AdminRoleIDs: []string{"moderator"}}

	assert.True(IsGuildAdmin(guild, testMember("owner"), settings))
	assert.True(IsGuildAdmin(guild, testMember("a", "admin"), settings))
	assert.True(IsGuildAdmin(guild, testMember("m", "manager"), settings))
	assert.True(IsGuildAdmin(guild, testMember("mod", "moderator"), settings))
	assert.False(IsGuildAdmin(guild, testMember("mod", "moderator"), models.GuildSettings{}))
	assert.False(IsGuildAdmin(guild, testMember("user", "member"), settings))
	assert.False(IsGuildAdmin(guild, nil, settings))
}

func TestHasManageGuild(t *testing.T) {
	assert := assert.New(t)
	guild := testGuild()

	assert.True(HasManageGuild(guild, testMember("owner")))
	assert.True(HasManageGuild(guild, testMember("m", "manager")))
	assert.True(HasManageGuild(guild, testMember("a", "admin")))
	assert.False(HasManageGuild(guild, testMember("mod", "moderator")))
}

func TestCompareSnowflakes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(-1, CompareSnowflakes("99", "100"))
	assert.Equal(1, CompareSnowflakes("200", "100"))
	assert.Equal(0, CompareSnowflakes("123", "123"))
	assert.Equal(-1, CompareSnowflakes("123", "124"))
}

func TestRESTErrorClassification(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsTargetGone(platform.RESTError(ErrCodeUnknownMember)))
	assert.True(IsTargetGone(errors.Wrap(platform.RESTError(ErrCodeUnknownBan), "unban")))
	assert.False(IsTargetGone(platform.RESTError(ErrCodeMissingPermissions)))
	assert.False(IsTargetGone(errors.New("timeout")))
	assert.False(IsTargetGone(nil))

	assert.True(IsMissingPermissions(platform.RESTError(ErrCodeMissingAccess)))
	assert.True(IsMissingPermissions(platform.RESTError(ErrCodeMissingPermissions)))
	assert.False(IsMissingPermissions(platform.RESTError(ErrCodeUnknownUser)))
}

func TestGoRecoversPanics(t *testing.T) {
	done := make(chan struct{})
	Go(func() {
		defer close(done)
		panic("boom")
	})
	<-done
}
