package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogEnabled(t *testing.T) {
	assert := assert.New(t)

	settings := GuildSettings{EnabledLogActions: []LogAction{LogActionMessageDeleted}}
	assert.False(settings.LogEnabled(LogActionMessageDeleted), "no log channel")

	settings.LogChannelID = "log"
	assert.True(settings.LogEnabled(LogActionMessageDeleted))
	assert.False(settings.LogEnabled(LogActionMemberLeft))
}

func TestLogIgnoredAndAdminRoles(t *testing.T) {
	assert := assert.New(t)

	settings := GuildSettings{IgnoredLogChannelIDs: []string{"bots"}, AdminRoleIDs: []string{"staff"}}
	assert.True(settings.LogIgnored("bots"))
	assert.False(settings.LogIgnored("general"))
	assert.True(settings.IsAdminRole("staff"))
	assert.False(settings.IsAdminRole("member"))
}

func TestThreshold(t *testing.T) {
	settings := BannedPhraseSettings{Thresholds: []PhraseThreshold{{Tier: 2, Occurrences: 3}}}

	threshold, ok := settings.Threshold(2)
	assert.True(t, ok)
	assert.Equal(t, 3, threshold.Occurrences)

	_, ok = settings.Threshold(1)
	assert.False(t, ok)
}

func TestSpamCategoryKeys(t *testing.T) {
	assert := assert.New(t)

	var spam map[SpamCategory]SpamPreventionSettings
	assert.NoError(json.Unmarshal([]byte(`{"LINKS": {"Enabled": true}}`), &spam))
	assert.True(spam[SpamLinks].Enabled)

	assert.Error(json.Unmarshal([]byte(`{"emotes": {}}`), &spam))
}

func TestAttributionString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("abc", Attribution{Kind: AttributionInvite, Code: "abc"}.String())
	assert.Equal(InviteSentinelAdmin, Attribution{Kind: AttributionAdmin}.String())
	assert.Equal(InviteSentinelVanity, Attribution{Kind: AttributionVanity}.String())
	assert.Equal("", Attribution{Kind: AttributionNoPermission}.String())
	assert.Equal("unknown", Attribution{}.String())
}
