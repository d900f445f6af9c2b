package automod

import (
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/invites"
	"github.com/puzpuzpuz/xsync/v3"
)

type offenseKey struct {
	UserID string
	Tier   int
}

type userSpam struct {
	sync.Mutex
	windows map[models.SpamCategory]*Window
	// dropped is set once the entry was removed from the guild state
	dropped bool
}

// SpamProfile accumulates the consequences of spam triggers of one user until the hourly reset
type SpamProfile struct {
	sync.Mutex
	Punishment    models.PunishmentKind
	Duration      time.Duration
	VotesRequired int
	Voters        map[string]bool
}

// GuildState is the moderation state of one guild, created on first use
type GuildState struct {
	GuildID  string
	Invites  *invites.Cache
	spam     *xsync.MapOf[string, *userSpam]
	profiles *xsync.MapOf[string, *SpamProfile]
	offenses *xsync.MapOf[offenseKey, int]

	raidLock  sync.Mutex
	raid      *Window
	rapidJoin *Window
}

// Registry holds the GuildState of every guild
type Registry struct {
	guilds     *xsync.MapOf[string, *GuildState]
	newInvites func(guildID string) *invites.Cache
}

// NewRegistry returns an empty registry, $newInvites builds the invite cache of a new guild state and may be nil
func NewRegistry(newInvites func(guildID string) *invites.Cache) *Registry {
	return &Registry{
		guilds:     xsync.NewMapOf[string, *GuildState](),
		newInvites: newInvites,
	}
}

// Get returns the state of $guildID, creating it if needed
func (r *Registry) Get(guildID string) *GuildState {
	state, loaded := r.guilds.LoadOrCompute(guildID, func() *GuildState {
		state := &GuildState{
			GuildID:   guildID,
			spam:      xsync.NewMapOf[string, *userSpam](),
			profiles:  xsync.NewMapOf[string, *SpamProfile](),
			offenses:  xsync.NewMapOf[offenseKey, int](),
			raid:      NewWindow(),
			rapidJoin: NewWindow(),
		}
		if r.newInvites != nil {
			state.Invites = r.newInvites(guildID)
		}
		return state
	})
	if !loaded {
		metrics.GuildCount.Set(float64(r.guilds.Size()))
	}
	return state
}

// Lookup returns the state of $guildID without creating it
func (r *Registry) Lookup(guildID string) (*GuildState, bool) {
	return r.guilds.Load(guildID)
}

// Remove discards the state of a guild the bot left
func (r *Registry) Remove(guildID string) {
	r.guilds.Delete(guildID)
	metrics.GuildCount.Set(float64(r.guilds.Size()))
}

func (r *Registry) Range(fn func(state *GuildState) bool) {
	r.guilds.Range(func(guildID string, state *GuildState) bool {
		return fn(state)
	})
}

func (r *Registry) Len() int {
	return r.guilds.Size()
}

func (s *GuildState) spamOf(userID string) *userSpam {
	spam, _ := s.spam.LoadOrCompute(userID, func() *userSpam {
		return &userSpam{windows: make(map[models.SpamCategory]*Window)}
	})
	return spam
}

// Profile returns the spam profile of $userID if the user was flagged
func (s *GuildState) Profile(userID string) (*SpamProfile, bool) {
	return s.profiles.Load(userID)
}

// Offenses returns the offense counter of $userID for $tier
func (s *GuildState) Offenses(userID string, tier int) int {
	count, _ := s.offenses.Load(offenseKey{UserID: userID, Tier: tier})
	return count
}
