package main

import (
	"fmt"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/modules"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	engine *modules.Engine
	// guilds discord announced as part of a session, GuildCreate for anything else is a join
	knownGuilds = xsync.NewMapOf[string, bool]()
)

// BotOnReady gets called after the gateway connected
func BotOnReady(session *discordgo.Session, event *discordgo.Ready) {
	log := cache.GetLogger()

	log.WithField("module", "bot").Infof("Connected to discord as %s#%s (%d guilds)",
		event.User.Username, event.User.Discriminator, len(event.Guilds))

	cache.SetSession(session)
	for _, guild := range event.Guilds {
		knownGuilds.Store(guild.ID, true)
	}

	// request guild members from the gateway, the hierarchy checks need them
	go func() {
		time.Sleep(30 * time.Second)

		for _, guild := range session.State.Guilds {
			err := session.RequestGuildMembers(guild.ID, "", 0, "", false)
			if err != nil {
				log.WithField("module", "bot").Error(fmt.Sprintf("Failed to request Members for Guild %s #%s: %s",
					guild.Name, guild.ID, err.Error()))
			}
		}
	}()
}

func BotOnMemberListChunk(session *discordgo.Session, members *discordgo.GuildMembersChunk) {
	cache.GetLogger().WithField("module", "bot").Debug(
		fmt.Sprintf("received guild member chunk for guild: %s (%d members)",
			members.GuildID, len(members.Members)))
	var err error
	for _, member := range members.Members {
		member.GuildID = members.GuildID
		err = session.State.MemberAdd(member)
		if err != nil {
			raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{})
		}
	}
}

func BotOnGuildCreate(session *discordgo.Session, guild *discordgo.GuildCreate) {
	if guild.Unavailable {
		return
	}
	_, known := knownGuilds.LoadOrStore(guild.ID, true)
	if known {
		engine.OnGuildAvailable(guild.Guild)
		return
	}
	engine.OnGuildJoined(guild.Guild)
}

func BotOnGuildDelete(session *discordgo.Session, guild *discordgo.GuildDelete) {
	if guild.Unavailable {
		engine.OnGuildUnavailable(guild.ID)
		return
	}
	knownGuilds.Delete(guild.ID)
	engine.OnGuildLeft(guild.ID)
}

func BotOnMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	if message.Author == nil || message.GuildID == "" {
		return
	}
	engine.OnMessageReceived(message.Message)
}

func BotOnMessageUpdate(session *discordgo.Session, message *discordgo.MessageUpdate) {
	if message.GuildID == "" {
		return
	}
	engine.OnMessageUpdated(message.Message)
}

func BotOnMessageDelete(session *discordgo.Session, message *discordgo.MessageDelete) {
	if message.GuildID == "" {
		return
	}
	engine.OnMessageDeleted(message.GuildID, message.ChannelID, message.ID)
}

func BotOnMessageDeleteBulk(session *discordgo.Session, messages *discordgo.MessageDeleteBulk) {
	if messages.GuildID == "" {
		return
	}
	engine.OnMessagesBulkDeleted(messages.GuildID, messages.ChannelID, messages.Messages)
}

func BotOnGuildMemberAdd(session *discordgo.Session, member *discordgo.GuildMemberAdd) {
	engine.OnUserJoined(member.Member)
}

func BotOnGuildMemberRemove(session *discordgo.Session, member *discordgo.GuildMemberRemove) {
	engine.OnUserLeft(member.Member)
}

func BotOnGuildMemberUpdate(session *discordgo.Session, member *discordgo.GuildMemberUpdate) {
	engine.OnUserUpdated(member.BeforeUpdate, member.Member)
}

func BotOnGuildBanAdd(session *discordgo.Session, ban *discordgo.GuildBanAdd) {
	engine.OnUserBanned(ban.GuildID, ban.User)
}

func BotOnGuildBanRemove(session *discordgo.Session, ban *discordgo.GuildBanRemove) {
	engine.OnUserUnbanned(ban.GuildID, ban.User)
}
