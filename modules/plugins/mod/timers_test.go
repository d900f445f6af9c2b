package mod

import (
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncRun(fn func()) { fn() }

func newTimerService(fake *platform.Fake, now time.Time) *TimerService {
	timers := NewTimerService(NewMemoryStore(), fake)
	timers.now = func() time.Time { return now }
	timers.async = syncRun
	return timers
}

func TestScheduleIsIdempotentPerUserAndKind(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	timers := newTimerService(fake, storeEpoch)

	_, err := timers.Schedule("guild", "1", models.PunishmentRoleMute, storeEpoch.Add(time.Minute), "muted", models.ReasonSpam)
	require.NoError(t, err)
	_, err = timers.Schedule("guild", "1", models.PunishmentRoleMute, storeEpoch.Add(time.Hour), "muted", models.ReasonSpam)
	require.NoError(t, err)

	assert.Len(timers.Pending(), 1)
	assert.Equal(0, timers.Sweep(storeEpoch.Add(time.Minute)), "due time was replaced")
	assert.Equal(1, timers.Sweep(storeEpoch.Add(time.Hour)))
	assert.Equal([]string{"RemoveRole guild 1 muted"}, fake.AllCalls())
}

func TestSweepReversesEveryKind(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	timers := newTimerService(fake, storeEpoch)
	var reversed []models.PunishmentKind
	timers.OnReversed = func(job models.PendingPunishment) {
		reversed = append(reversed, job.Kind)
	}

	for _, kind := range []models.PunishmentKind{models.PunishmentDeafen, models.PunishmentVoiceMute, models.PunishmentRoleMute, models.PunishmentBan} {
		_, err := timers.Schedule("guild", "1", kind, storeEpoch.Add(time.Second), "muted", models.ReasonSpam)
		require.NoError(t, err)
	}

	assert.Equal(4, timers.Sweep(storeEpoch.Add(time.Second)))
	assert.ElementsMatch([]string{
		"Deafen guild 1 false",
		"VoiceMute guild 1 false",
		"RemoveRole guild 1 muted",
		"Unban guild 1",
	}, fake.AllCalls())
	assert.Len(reversed, 4)
	assert.Empty(timers.Pending())
}

func TestCancelBeforeDuePreventsReversal(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	timers := newTimerService(fake, storeEpoch)

	_, err := timers.Schedule("guild", "1", models.PunishmentRoleMute, storeEpoch.Add(60*time.Second), "muted", models.ReasonSpam)
	require.NoError(t, err)

	// a moderator lifts the mute at 59.9s
	assert.True(timers.Cancel("guild", "1", models.PunishmentRoleMute))
	assert.False(timers.Cancel("guild", "1", models.PunishmentRoleMute))

	assert.Equal(0, timers.Sweep(storeEpoch.Add(60*time.Second)))
	assert.Empty(fake.AllCalls())
}

func TestCancelAfterSweepClaimedDoesNothing(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	timers := newTimerService(fake, storeEpoch)

	_, err := timers.Schedule("guild", "1", models.PunishmentBan, storeEpoch.Add(time.Second), "", models.ReasonRaid)
	require.NoError(t, err)

	assert.Equal(1, timers.Sweep(storeEpoch.Add(2*time.Second)))
	assert.False(timers.Cancel("guild", "1", models.PunishmentBan))
	assert.Equal([]string{"Unban guild 1"}, fake.AllCalls())
}

func TestCancelByPredicateAndGuild(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	timers := newTimerService(fake, storeEpoch)

	for _, userID := range []string{"1", "2", "3"} {
		_, err := timers.Schedule("guild", userID, models.PunishmentRoleMute, storeEpoch.Add(time.Minute), "muted", models.ReasonSpam)
		require.NoError(t, err)
	}
	_, err := timers.Schedule("other", "1", models.PunishmentBan, storeEpoch.Add(time.Minute), "", models.ReasonSpam)
	require.NoError(t, err)

	assert.Equal(1, timers.CancelByPredicate(func(job models.PendingPunishment) bool {
		return job.UserID == "2" && job.Kind == models.PunishmentRoleMute
	}))
	assert.Equal(2, timers.CancelGuild("guild"))
	assert.Len(timers.Pending(), 1)
}

func TestReversalOfGoneTargetIsDropped(t *testing.T) {
	assert := assert.New(t)

	fake := platform.NewFake("bot")
	fake.Errors["Unban"] = platform.RESTError(10026)
	timers := newTimerService(fake, storeEpoch)
	var reversed int
	timers.OnReversed = func(job models.PendingPunishment) { reversed++ }

	_, err := timers.Schedule("guild", "1", models.PunishmentBan, storeEpoch, "", models.ReasonSpam)
	require.NoError(t, err)

	assert.Equal(1, timers.Sweep(storeEpoch))
	assert.Equal(0, reversed)
	assert.Equal(0, timers.Sweep(storeEpoch.Add(time.Hour)), "no retry")
	assert.Len(fake.CallsWithPrefix("Unban"), 1)
}
