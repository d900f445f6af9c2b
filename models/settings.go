package models

import (
	"fmt"
	"strings"
)

type SpamCategory string

const (
	SpamShortMessage SpamCategory = "short_message"
	SpamLongMessage  SpamCategory = "long_message"
	SpamLinks        SpamCategory = "links"
	SpamImages       SpamCategory = "images"
	SpamMentions     SpamCategory = "mentions"
)

var SpamCategories = []SpamCategory{
	SpamShortMessage,
	SpamLongMessage,
	SpamLinks,
	SpamImages,
	SpamMentions,
}

func (c *SpamCategory) UnmarshalText(text []byte) error {
	value := SpamCategory(strings.ToLower(string(text)))
	for _, category := range SpamCategories {
		if category == value {
			*c = value
			return nil
		}
	}
	return fmt.Errorf("unknown spam category %q", string(text))
}

type LogAction string

const (
	LogActionMessageDeleted LogAction = "message_deleted"
	LogActionMessageEdited  LogAction = "message_edited"
	LogActionMemberJoined   LogAction = "member_joined"
	LogActionMemberLeft     LogAction = "member_left"
	LogActionMemberUpdated  LogAction = "member_updated"
	LogActionPunishment     LogAction = "punishment"
)

type SpamPreventionSettings struct {
	Enabled                bool
	TimeInterval           Duration
	RequiredSpamInstances  int
	RequiredSpamPerMessage int
	VotesForKick           int
	Punishment             PunishmentKind
	PunishmentDuration     Duration
	ShortMessageMaxLength  int
	LongMessageMinLength   int
}

type RaidPreventionSettings struct {
	Enabled            bool
	TimeInterval       Duration
	RequiredInstances  int
	Punishment         PunishmentKind
	PunishmentDuration Duration
}

type PhraseRule struct {
	Phrase string
	Regex  bool
	Tier   int
}

// PhraseThreshold punishes once a user matched Occurrences phrases of Tier
type PhraseThreshold struct {
	Tier        int
	Occurrences int
	Punishment  PunishmentKind
	Duration    Duration
}

type BannedPhraseSettings struct {
	Enabled    bool
	Phrases    []PhraseRule
	Thresholds []PhraseThreshold
}

// Threshold returns the configured threshold for tier
func (s BannedPhraseSettings) Threshold(tier int) (PhraseThreshold, bool) {
	for _, threshold := range s.Thresholds {
		if threshold.Tier == tier {
			return threshold, true
		}
	}
	return PhraseThreshold{}, false
}

type SlowmodeSettings struct {
	Enabled  bool
	Messages int
	Interval Duration
}

// GuildSettings is the read-only configuration of one guild
type GuildSettings struct {
	GuildID              string
	LogChannelID         string
	IgnoredLogChannelIDs []string
	EnabledLogActions    []LogAction
	AdminRoleIDs         []string
	MuteRoleID           string
	Spam                 map[SpamCategory]SpamPreventionSettings
	BannedPhrases        BannedPhraseSettings
	Raid                 RaidPreventionSettings
	RapidJoin            RaidPreventionSettings
	Slowmode             SlowmodeSettings
}

func (s GuildSettings) LogEnabled(action LogAction) bool {
	if s.LogChannelID == "" {
		return false
	}
	for _, enabled := range s.EnabledLogActions {
		if enabled == action {
			return true
		}
	}
	return false
}

func (s GuildSettings) LogIgnored(channelID string) bool {
	for _, ignored := range s.IgnoredLogChannelIDs {
		if ignored == channelID {
			return true
		}
	}
	return false
}

func (s GuildSettings) IsAdminRole(roleID string) bool {
	for _, adminRoleID := range s.AdminRoleIDs {
		if adminRoleID == roleID {
			return true
		}
	}
	return false
}
