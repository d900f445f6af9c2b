package mod

import (
	"time"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/satori/go.uuid"
)

// DefaultSweepInterval is the cadence reversals are checked at
const DefaultSweepInterval = 500 * time.Millisecond

// TimerService lifts temporary punishments once they are due
type TimerService struct {
	store   PendingStore
	actions platform.Moderator
	now     func() time.Time
	async   func(func())
	// OnReversed is called after a reversal was dispatched
	OnReversed func(job models.PendingPunishment)
}

func NewTimerService(store PendingStore, actions platform.Moderator) *TimerService {
	return &TimerService{
		store:   store,
		actions: actions,
		now:     time.Now,
		async:   helpers.Go,
	}
}

// Schedule registers the reversal of $kind for $userID at $dueAt.
// An existing pending reversal for the same user and kind is replaced.
func (t *TimerService) Schedule(guildID, userID string, kind models.PunishmentKind, dueAt time.Time, roleID string, reason models.PunishmentReason) (models.PendingPunishment, error) {
	job := models.PendingPunishment{
		ID:        uuid.NewV4().String(),
		GuildID:   guildID,
		UserID:    userID,
		Kind:      kind,
		DueAt:     dueAt,
		RoleID:    roleID,
		Reason:    reason,
		CreatedAt: t.now(),
	}
	err := t.store.Put(job)
	if err != nil {
		return job, err
	}

	logger().WithField("GuildID", guildID).WithField("UserID", userID).
		Debugf("scheduled reversal of %s at %s", kind.String(), dueAt.Format(time.RFC3339))
	return job, nil
}

// Cancel drops the pending reversal of $kind for $userID, it returns false if there was none
func (t *TimerService) Cancel(guildID, userID string, kind models.PunishmentKind) bool {
	_, ok, err := t.store.Claim(models.PendingKey{GuildID: guildID, UserID: userID, Kind: kind})
	if err != nil {
		helpers.RelaxLog(err, "cancelling reversal")
		return false
	}
	if ok {
		metrics.ReversalsCancelled.Inc()
	}
	return ok
}

// CancelByPredicate drops every pending reversal $match returns true for.
// Each job is claimed before it counts as cancelled, a job the sweep claimed first is not counted.
func (t *TimerService) CancelByPredicate(match func(job models.PendingPunishment) bool) int {
	jobs, err := t.store.All()
	if err != nil {
		helpers.RelaxLog(err, "listing pending reversals")
		return 0
	}

	var cancelled int
	for _, job := range jobs {
		if !match(job) {
			continue
		}
		if t.Cancel(job.GuildID, job.UserID, job.Kind) {
			cancelled++
		}
	}
	return cancelled
}

// CancelGuild drops all pending reversals of $guildID
func (t *TimerService) CancelGuild(guildID string) int {
	return t.CancelByPredicate(func(job models.PendingPunishment) bool {
		return job.GuildID == guildID
	})
}

// Pending returns all pending reversals
func (t *TimerService) Pending() []models.PendingPunishment {
	jobs, err := t.store.All()
	helpers.RelaxLog(err, "listing pending reversals")
	return jobs
}

// Sweep claims every reversal due at $now and dispatches it, it returns the number of claimed jobs
func (t *TimerService) Sweep(now time.Time) int {
	keys, err := t.store.Due(now)
	if err != nil {
		helpers.RelaxLog(err, "sweeping pending reversals")
		return 0
	}

	var claimed int
	for _, key := range keys {
		job, ok, err := t.store.ClaimDue(key, now)
		if err != nil {
			helpers.RelaxLog(err, "claiming reversal "+key.String())
			continue
		}
		if !ok {
			continue
		}
		claimed++
		t.async(func() {
			t.reverse(job)
		})
	}

	if length, err := t.store.Len(); err == nil {
		metrics.PendingReversals.Set(float64(length))
	}
	return claimed
}

func (t *TimerService) reverse(job models.PendingPunishment) {
	var err error
	switch job.Kind {
	case models.PunishmentRoleMute:
		err = t.actions.RemoveRole(job.GuildID, job.UserID, job.RoleID)
	case models.PunishmentVoiceMute:
		err = t.actions.VoiceMute(job.GuildID, job.UserID, false)
	case models.PunishmentDeafen:
		err = t.actions.Deafen(job.GuildID, job.UserID, false)
	case models.PunishmentBan:
		err = t.actions.Unban(job.GuildID, job.UserID)
	default:
		logger().Warnf("dropping reversal of irreversible punishment %s", job.Kind.String())
		return
	}

	entry := logger().WithField("GuildID", job.GuildID).WithField("UserID", job.UserID)
	if err != nil {
		if helpers.IsTargetGone(err) {
			entry.Debugf("target of %s reversal is gone, dropping it", job.Kind.String())
			return
		}
		entry.Warnf("reversal of %s failed: %s", job.Kind.String(), err.Error())
		return
	}

	metrics.ReversalsExecuted.WithLabelValues(job.Kind.String()).Inc()
	entry.Infof("lifted %s (%s)", job.Kind.String(), job.Reason)
	if t.OnReversed != nil {
		t.OnReversed(job)
	}
}
