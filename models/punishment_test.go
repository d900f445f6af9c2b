package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPunishmentSeverityOrder(t *testing.T) {
	assert := assert.New(t)

	ordered := []PunishmentKind{
		PunishmentNothing,
		PunishmentDeafen,
		PunishmentVoiceMute,
		PunishmentRoleMute,
		PunishmentKick,
		PunishmentKickThenBan,
		PunishmentBan,
	}
	for i := 1; i < len(ordered); i++ {
		assert.True(ordered[i].MoreSevereThan(ordered[i-1]), "%s > %s", ordered[i], ordered[i-1])
		assert.False(ordered[i-1].MoreSevereThan(ordered[i]))
	}
}

func TestMostSevere(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(PunishmentNothing, MostSevere())
	assert.Equal(PunishmentKick, MostSevere(PunishmentRoleMute, PunishmentKick, PunishmentDeafen))
	assert.Equal(PunishmentBan, MostSevere(PunishmentBan, PunishmentKickThenBan))
}

func TestReversible(t *testing.T) {
	assert := assert.New(t)

	assert.True(PunishmentRoleMute.Reversible())
	assert.True(PunishmentBan.Reversible())
	assert.True(PunishmentDeafen.Reversible())
	assert.False(PunishmentKick.Reversible())
	assert.False(PunishmentKickThenBan.Reversible())
	assert.False(PunishmentNothing.Reversible())
}

func TestParsePunishmentKind(t *testing.T) {
	assert := assert.New(t)

	for input, expected := range map[string]PunishmentKind{
		"":              PunishmentNothing,
		"ban":           PunishmentBan,
		"Role_Mute":     PunishmentRoleMute,
		"rolemute":      PunishmentRoleMute,
		" kickthenban ": PunishmentKickThenBan,
	} {
		kind, err := ParsePunishmentKind(input)
		assert.NoError(err, input)
		assert.Equal(expected, kind, input)
	}

	_, err := ParsePunishmentKind("exile")
	assert.Error(err)
	assert.Equal("punishment(42)", PunishmentKind(42).String())
}

func TestPunishmentKindJSON(t *testing.T) {
	var settings RaidPreventionSettings
	err := json.Unmarshal([]byte(`{"Punishment": "voice_mute", "PunishmentDuration": "1h"}`), &settings)
	require.NoError(t, err)
	assert.Equal(t, PunishmentVoiceMute, settings.Punishment)
	assert.Equal(t, time.Hour, settings.PunishmentDuration.Duration)
}

func TestPendingKey(t *testing.T) {
	assert := assert.New(t)

	pending := PendingPunishment{GuildID: "1", UserID: "2", Kind: PunishmentRoleMute}
	key := pending.Key()
	assert.Equal("1:2:role_mute", key.String())

	parsed, err := ParsePendingKey(key.String())
	assert.NoError(err)
	assert.Equal(key, parsed)

	_, err = ParsePendingKey("1:2")
	assert.Error(err)
	_, err = ParsePendingKey("1:2:shun")
	assert.Error(err)
}
