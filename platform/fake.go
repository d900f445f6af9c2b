package platform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// Fake is an in-memory Platform recording every mutating call
type Fake struct {
	sync.Mutex
	BotID       string
	Guilds      map[string]*discordgo.Guild
	Members     map[string]*discordgo.Member
	ChannelList map[string][]*discordgo.Channel
	InviteList  map[string][]*discordgo.Invite
	Executors   map[string]string
	// Uncached holds guildID:userID keys of members only reachable through Member
	Uncached map[string]bool
	// Errors maps a method name such as "Kick" to the error it returns
	Errors map[string]error
	Calls  []string
	Sent   []FakeMessage
	// OnSend is called for every SendMessage after it was recorded
	OnSend func(channelID string, data *discordgo.MessageSend)

	roleCounter int
}

type FakeMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

func NewFake(botID string) *Fake {
	return &Fake{
		BotID:       botID,
		Guilds:      make(map[string]*discordgo.Guild),
		Members:     make(map[string]*discordgo.Member),
		ChannelList: make(map[string][]*discordgo.Channel),
		InviteList:  make(map[string][]*discordgo.Invite),
		Executors:   make(map[string]string),
		Uncached:    make(map[string]bool),
		Errors:      make(map[string]error),
	}
}

// RESTError builds the error discordgo returns for a failed request with $code
func RESTError(code int) error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: code, Message: fmt.Sprintf("error %d", code)}}
}

// AddGuild registers a guild owned by $ownerID
func (f *Fake) AddGuild(guildID, ownerID string, roles ...*discordgo.Role) *discordgo.Guild {
	f.Lock()
	defer f.Unlock()

	guild := &discordgo.Guild{ID: guildID, OwnerID: ownerID, Roles: roles}
	f.Guilds[guildID] = guild
	return guild
}

// AddMember registers a member of $guildID holding $roleIDs
func (f *Fake) AddMember(guildID, userID string, roleIDs ...string) *discordgo.Member {
	f.Lock()
	defer f.Unlock()

	member := &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID, Username: "user" + userID}, Roles: roleIDs}
	f.Members[guildID+":"+userID] = member
	return member
}

func (f *Fake) SetInvites(guildID string, invites map[string]int) {
	f.Lock()
	defer f.Unlock()

	list := make([]*discordgo.Invite, 0, len(invites))
	for code, uses := range invites {
		list = append(list, &discordgo.Invite{Code: code, Uses: uses, Inviter: &discordgo.User{ID: "inviter-" + code}})
	}
	f.InviteList[guildID] = list
}

// CallsWithPrefix returns the recorded calls starting with $prefix
func (f *Fake) CallsWithPrefix(prefix string) []string {
	f.Lock()
	defer f.Unlock()

	result := make([]string, 0)
	for _, call := range f.Calls {
		if strings.HasPrefix(call, prefix) {
			result = append(result, call)
		}
	}
	return result
}

func (f *Fake) AllCalls() []string {
	f.Lock()
	defer f.Unlock()

	return append([]string(nil), f.Calls...)
}

func (f *Fake) SentMessages() []FakeMessage {
	f.Lock()
	defer f.Unlock()

	return append([]FakeMessage(nil), f.Sent...)
}

func (f *Fake) record(method string, args ...string) error {
	f.Lock()
	defer f.Unlock()

	f.Calls = append(f.Calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	return f.Errors[method]
}

func (f *Fake) BotUserID() string {
	return f.BotID
}

func (f *Fake) Guild(guildID string) (*discordgo.Guild, error) {
	f.Lock()
	defer f.Unlock()

	if err := f.Errors["Guild"]; err != nil {
		return nil, err
	}
	guild, ok := f.Guilds[guildID]
	if !ok {
		return nil, errors.Wrap(RESTError(10004), "unknown guild")
	}
	return guild, nil
}

func (f *Fake) Member(guildID, userID string) (*discordgo.Member, error) {
	f.Lock()
	defer f.Unlock()

	member, ok := f.Members[guildID+":"+userID]
	if !ok {
		return nil, errors.Wrap(RESTError(10007), "unknown member")
	}
	return member, nil
}

func (f *Fake) CachedGuild(guildID string) (*discordgo.Guild, bool) {
	f.Lock()
	defer f.Unlock()

	guild, ok := f.Guilds[guildID]
	return guild, ok
}

func (f *Fake) CachedMember(guildID, userID string) (*discordgo.Member, bool) {
	f.Lock()
	defer f.Unlock()

	key := guildID + ":" + userID
	if f.Uncached[key] {
		return nil, false
	}
	member, ok := f.Members[key]
	return member, ok
}

func (f *Fake) Channels(guildID string) ([]*discordgo.Channel, error) {
	f.Lock()
	defer f.Unlock()

	return f.ChannelList[guildID], nil
}

func (f *Fake) Invites(ctx context.Context, guildID string) ([]*discordgo.Invite, error) {
	f.Lock()
	defer f.Unlock()

	if err := f.Errors["Invites"]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]*discordgo.Invite, 0, len(f.InviteList[guildID]))
	for _, invite := range f.InviteList[guildID] {
		copied := *invite
		result = append(result, &copied)
	}
	return result, nil
}

func (f *Fake) BanExecutor(ctx context.Context, guildID, targetID string) (string, error) {
	f.Lock()
	defer f.Unlock()

	return f.Executors[guildID+":"+targetID], f.Errors["BanExecutor"]
}

func (f *Fake) SendMessage(channelID string, data *discordgo.MessageSend) error {
	err := f.record("SendMessage", channelID)
	f.Lock()
	f.Sent = append(f.Sent, FakeMessage{ChannelID: channelID, Data: data})
	onSend := f.OnSend
	f.Unlock()
	if onSend != nil {
		onSend(channelID, data)
	}
	return err
}

func (f *Fake) DeleteMessage(channelID, messageID string) error {
	return f.record("DeleteMessage", channelID, messageID)
}

func (f *Fake) Kick(guildID, userID, reason string) error {
	return f.record("Kick", guildID, userID)
}

func (f *Fake) Ban(guildID, userID, reason string) error {
	return f.record("Ban", guildID, userID)
}

func (f *Fake) Unban(guildID, userID string) error {
	return f.record("Unban", guildID, userID)
}

func (f *Fake) VoiceMute(guildID, userID string, mute bool) error {
	return f.record("VoiceMute", guildID, userID, fmt.Sprint(mute))
}

func (f *Fake) Deafen(guildID, userID string, deafen bool) error {
	return f.record("Deafen", guildID, userID, fmt.Sprint(deafen))
}

func (f *Fake) AddRole(guildID, userID, roleID string) error {
	return f.record("AddRole", guildID, userID, roleID)
}

func (f *Fake) RemoveRole(guildID, userID, roleID string) error {
	return f.record("RemoveRole", guildID, userID, roleID)
}

func (f *Fake) CreateRole(guildID, name string) (*discordgo.Role, error) {
	if err := f.record("CreateRole", guildID, name); err != nil {
		return nil, err
	}

	f.Lock()
	defer f.Unlock()

	f.roleCounter++
	role := &discordgo.Role{ID: fmt.Sprintf("created-role-%d", f.roleCounter), Name: name}
	if guild, ok := f.Guilds[guildID]; ok {
		guild.Roles = append(guild.Roles, role)
	}
	return role, nil
}

func (f *Fake) DenyRole(channelID, roleID string, deny int64) error {
	err := f.record("DenyRole", channelID, roleID)
	if err != nil {
		return err
	}

	f.Lock()
	defer f.Unlock()

	for _, channels := range f.ChannelList {
		for _, channel := range channels {
			if channel.ID == channelID {
				channel.PermissionOverwrites = append(channel.PermissionOverwrites, &discordgo.PermissionOverwrite{
					ID:   roleID,
					Type: discordgo.PermissionOverwriteTypeRole,
					Deny: deny,
				})
			}
		}
	}
	return nil
}
