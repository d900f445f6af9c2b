package models

import (
	"time"
)

const (
	InviteSentinelAdmin  = "invited by admin"
	InviteSentinelVanity = "vanity/single-use/twitch"
)

type AttributionKind int

const (
	// AttributionUnknown is returned when the join cannot be attributed
	AttributionUnknown AttributionKind = iota
	AttributionInvite
	AttributionAdmin
	AttributionVanity
	// AttributionNoPermission means invites could not be listed at all
	AttributionNoPermission
)

type Attribution struct {
	Kind AttributionKind
	Code string
}

func (a Attribution) String() string {
	switch a.Kind {
	case AttributionInvite:
		return a.Code
	case AttributionAdmin:
		return InviteSentinelAdmin
	case AttributionVanity:
		return InviteSentinelVanity
	case AttributionNoPermission:
		return ""
	}
	return "unknown"
}

type InviteRecord struct {
	Code string
	Uses int
}

// InviteSnapshot is the last observed use count per invite code of a guild
type InviteSnapshot struct {
	GuildID   string
	Uses      map[string]int
	UpdatedAt time.Time
}

type JoinlogEntry struct {
	GuildID                   string
	UserID                    string
	JoinedAt                  time.Time
	AccountCreatedAt          time.Time
	Attribution               Attribution
	InviteCodeCreatedByUserID string
}
