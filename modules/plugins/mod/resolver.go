package mod

import (
	"fmt"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	MuteRoleName = "Muted"

	kickedMemorySize = 10000
	kickedMemoryTTL  = 24 * time.Hour
)

// Actions is what the resolver needs from the platform
type Actions interface {
	platform.Lookup
	platform.Moderator
}

// Signal asks for a punishment, several signals for one user have to be
// collapsed with models.MostSevere before they reach the resolver
type Signal struct {
	GuildID       string
	UserID        string
	Kind          models.PunishmentKind
	Duration      time.Duration
	AlreadyKicked bool
	Reason        models.PunishmentReason
	Detail        string
}

// Outcome describes what the resolver did with a signal
type Outcome struct {
	Signal
	Applied models.PunishmentKind
	Skipped bool
	Cause   string
}

// Resolver turns punishment signals into platform actions
type Resolver struct {
	actions   Actions
	timers    *TimerService
	settings  SettingsProvider
	kicked    *expirable.LRU[string, time.Time]
	muteRoles *xsync.MapOf[string, string]
	muteLocks *xsync.MapOf[string, *sync.Mutex]
	now       func() time.Time
	async     func(func())
	// OnApplied is called for every punishment that was dispatched
	OnApplied func(outcome Outcome)
}

func NewResolver(actions Actions, timers *TimerService, settings SettingsProvider) *Resolver {
	return &Resolver{
		actions:   actions,
		timers:    timers,
		settings:  settings,
		kicked:    expirable.NewLRU[string, time.Time](kickedMemorySize, nil, kickedMemoryTTL),
		muteRoles: xsync.NewMapOf[string, string](),
		muteLocks: xsync.NewMapOf[string, *sync.Mutex](),
		now:       time.Now,
		async:     helpers.Go,
	}
}

func kickedKey(guildID, userID string) string {
	return guildID + ":" + userID
}

// WasKicked is true if the bot kicked $userID from $guildID in the last day
func (r *Resolver) WasKicked(guildID, userID string) bool {
	return r.kicked.Contains(kickedKey(guildID, userID))
}

// Punish resolves a signal, looking up whether the user was kicked before
func (r *Resolver) Punish(guildID, userID string, kind models.PunishmentKind, duration time.Duration, reason models.PunishmentReason, detail string) Outcome {
	return r.Resolve(Signal{
		GuildID:       guildID,
		UserID:        userID,
		Kind:          kind,
		Duration:      duration,
		AlreadyKicked: r.WasKicked(guildID, userID),
		Reason:        reason,
		Detail:        detail,
	})
}

// ResolveIncident applies one guild level incident to every user involved
func (r *Resolver) ResolveIncident(guildID string, userIDs []string, kind models.PunishmentKind, duration time.Duration, reason models.PunishmentReason, detail string) []Outcome {
	logger().WithField("GuildID", guildID).Infof("resolving %s incident for %d users: %s", reason, len(userIDs), detail)

	outcomes := make([]Outcome, 0, len(userIDs))
	for _, userID := range userIDs {
		outcomes = append(outcomes, r.Punish(guildID, userID, kind, duration, reason, detail))
	}
	return outcomes
}

func (r *Resolver) skip(signal Signal, cause string) Outcome {
	metrics.PunishmentsSkipped.WithLabelValues(cause).Inc()
	logger().WithField("GuildID", signal.GuildID).WithField("UserID", signal.UserID).
		Debugf("skipping %s (%s): %s", signal.Kind.String(), signal.Reason, cause)
	return Outcome{Signal: signal, Skipped: true, Cause: cause}
}

// Resolve applies $signal unless the bot is not allowed to act on the target
func (r *Resolver) Resolve(signal Signal) Outcome {
	if signal.Kind == models.PunishmentNothing {
		return r.skip(signal, "nothing")
	}
	if signal.UserID == r.actions.BotUserID() {
		return r.skip(signal, "self")
	}

	guild, ok := r.actions.CachedGuild(signal.GuildID)
	if !ok {
		return r.skip(signal, "guild unavailable")
	}
	botMember, ok := r.actions.CachedMember(signal.GuildID, r.actions.BotUserID())
	if !ok {
		return r.skip(signal, "bot member unavailable")
	}

	applied := signal.Kind
	if applied == models.PunishmentKickThenBan {
		applied = models.PunishmentKick
		if signal.AlreadyKicked {
			applied = models.PunishmentBan
		}
	}

	target, ok := r.actions.CachedMember(signal.GuildID, signal.UserID)
	if !ok {
		// users who left can still be banned
		if applied != models.PunishmentBan {
			return r.skip(signal, "target gone")
		}
		if signal.UserID == guild.OwnerID {
			return r.skip(signal, "hierarchy")
		}
	} else if !helpers.CanActOn(guild, botMember, target) {
		return r.skip(signal, "hierarchy")
	}

	outcome := Outcome{Signal: signal, Applied: applied}
	r.async(func() {
		r.apply(outcome)
	})
	return outcome
}

func (r *Resolver) apply(outcome Outcome) {
	var err error
	var roleID string
	guildID, userID := outcome.GuildID, outcome.UserID
	reason := fmt.Sprintf("Automod: %s", outcome.Reason)
	if outcome.Detail != "" {
		reason += " (" + outcome.Detail + ")"
	}

	switch outcome.Applied {
	case models.PunishmentDeafen:
		err = r.actions.Deafen(guildID, userID, true)
	case models.PunishmentVoiceMute:
		err = r.actions.VoiceMute(guildID, userID, true)
	case models.PunishmentRoleMute:
		roleID, err = r.EnsureMuteRole(guildID)
		if err == nil {
			err = r.actions.AddRole(guildID, userID, roleID)
		}
	case models.PunishmentKick:
		err = r.actions.Kick(guildID, userID, reason)
	case models.PunishmentBan:
		err = r.actions.Ban(guildID, userID, reason)
	}

	entry := logger().WithField("GuildID", guildID).WithField("UserID", userID)
	if err != nil {
		if helpers.IsTargetGone(err) {
			entry.Debugf("target of %s is gone", outcome.Applied.String())
			return
		}
		entry.Warnf("applying %s failed: %s", outcome.Applied.String(), err.Error())
		return
	}
	if outcome.Applied == models.PunishmentKick {
		r.kicked.Add(kickedKey(guildID, userID), r.now())
	}
	metrics.PunishmentsApplied.WithLabelValues(outcome.Applied.String(), string(outcome.Reason)).Inc()
	entry.Infof("applied %s (%s)", outcome.Applied.String(), reason)

	if outcome.Duration > 0 && outcome.Applied.Reversible() && r.timers != nil {
		_, err = r.timers.Schedule(guildID, userID, outcome.Applied, r.now().Add(outcome.Duration), roleID, outcome.Reason)
		helpers.RelaxLog(err, "scheduling reversal")
	}

	if r.OnApplied != nil {
		r.OnApplied(outcome)
	}
}
