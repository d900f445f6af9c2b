package models

import (
	"fmt"
	"strings"
	"time"
)

// PunishmentKind is ordered by severity, Nothing being the mildest
type PunishmentKind int

const (
	PunishmentNothing PunishmentKind = iota
	PunishmentDeafen
	PunishmentVoiceMute
	PunishmentRoleMute
	PunishmentKick
	PunishmentKickThenBan
	PunishmentBan
)

var punishmentKindNames = map[PunishmentKind]string{
	PunishmentNothing:     "nothing",
	PunishmentDeafen:      "deafen",
	PunishmentVoiceMute:   "voice_mute",
	PunishmentRoleMute:    "role_mute",
	PunishmentKick:        "kick",
	PunishmentKickThenBan: "kick_then_ban",
	PunishmentBan:         "ban",
}

func (k PunishmentKind) String() string {
	if name, ok := punishmentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("punishment(%d)", int(k))
}

func (k PunishmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PunishmentKind) UnmarshalText(text []byte) error {
	parsed, err := ParsePunishmentKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePunishmentKind accepts the names returned by String, case insensitive
func ParsePunishmentKind(value string) (PunishmentKind, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return PunishmentNothing, nil
	}
	for kind, name := range punishmentKindNames {
		if name == value || strings.Replace(name, "_", "", -1) == value {
			return kind, nil
		}
	}
	return PunishmentNothing, fmt.Errorf("unknown punishment kind %q", value)
}

func (k PunishmentKind) MoreSevereThan(other PunishmentKind) bool {
	return k > other
}

// Reversible kinds can be lifted again by the timer service
func (k PunishmentKind) Reversible() bool {
	switch k {
	case PunishmentDeafen, PunishmentVoiceMute, PunishmentRoleMute, PunishmentBan:
		return true
	}
	return false
}

// MostSevere collapses concurrent signals to the single most severe kind
func MostSevere(kinds ...PunishmentKind) PunishmentKind {
	result := PunishmentNothing
	for _, kind := range kinds {
		if kind.MoreSevereThan(result) {
			result = kind
		}
	}
	return result
}

type PunishmentReason string

const (
	ReasonSpam         PunishmentReason = "spam"
	ReasonRaid         PunishmentReason = "raid"
	ReasonRapidJoin    PunishmentReason = "rapid_join"
	ReasonBannedPhrase PunishmentReason = "banned_phrase"
	ReasonVoteKick     PunishmentReason = "vote_kick"
	ReasonManual       PunishmentReason = "manual"
)

// PendingPunishment is a scheduled reversal of a temporary punishment
type PendingPunishment struct {
	ID        string
	GuildID   string
	UserID    string
	Kind      PunishmentKind
	DueAt     time.Time
	RoleID    string
	Reason    PunishmentReason
	CreatedAt time.Time
}

// PendingKey identifies a pending punishment, at most one exists per key
type PendingKey struct {
	GuildID string
	UserID  string
	Kind    PunishmentKind
}

func (p PendingPunishment) Key() PendingKey {
	return PendingKey{GuildID: p.GuildID, UserID: p.UserID, Kind: p.Kind}
}

func (k PendingKey) String() string {
	return k.GuildID + ":" + k.UserID + ":" + k.Kind.String()
}

// ParsePendingKey reverses PendingKey.String
func ParsePendingKey(value string) (PendingKey, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return PendingKey{}, fmt.Errorf("invalid pending key %q", value)
	}
	kind, err := ParsePunishmentKind(parts[2])
	if err != nil {
		return PendingKey{}, err
	}
	return PendingKey{GuildID: parts[0], UserID: parts[1], Kind: kind}, nil
}
