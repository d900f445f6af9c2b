package automod

import (
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/bwmarrin/discordgo"
	"mvdan.cc/xurls"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// SpamDetector tracks per user and category sliding windows and escalates
// users whose messages exceed the configured thresholds
type SpamDetector struct {
	registry *Registry
	settings SettingsProvider
	punisher Punisher
	deleter  MessageDeleter
	async    func(func())
}

func NewSpamDetector(registry *Registry, settings SettingsProvider, punisher Punisher, deleter MessageDeleter) *SpamDetector {
	return &SpamDetector{
		registry: registry,
		settings: settings,
		punisher: punisher,
		deleter:  deleter,
		async:    helpers.Go,
	}
}

// Weights returns how many spam instances $msg counts for per category
func Weights(msg *discordgo.Message, settings map[models.SpamCategory]models.SpamPreventionSettings) map[models.SpamCategory]int {
	weights := make(map[models.SpamCategory]int)
	length := utf8.RuneCountInString(msg.Content)

	if short := settings[models.SpamShortMessage]; length > 0 && length <= short.ShortMessageMaxLength {
		weights[models.SpamShortMessage] = 1
	}
	if long := settings[models.SpamLongMessage]; long.LongMessageMinLength > 0 && length >= long.LongMessageMinLength {
		weights[models.SpamLongMessage] = 1
	}
	if links := len(xurls.Relaxed.FindAllString(msg.Content, -1)); links > 0 {
		weights[models.SpamLinks] = links
	}
	if images := countImages(msg); images > 0 {
		weights[models.SpamImages] = images
	}
	if mentions := countMentions(msg); mentions > 0 {
		weights[models.SpamMentions] = mentions
	}
	return weights
}

func countImages(msg *discordgo.Message) int {
	var images int
	for _, attachment := range msg.Attachments {
		if attachment.Width > 0 || strings.HasPrefix(attachment.ContentType, "image/") ||
			imageExtensions[strings.ToLower(path.Ext(attachment.Filename))] {
			images++
		}
	}
	for _, embed := range msg.Embeds {
		if embed.Type == discordgo.EmbedTypeImage || embed.Type == discordgo.EmbedTypeGifv || embed.Image != nil {
			images++
		}
	}
	return images
}

func countMentions(msg *discordgo.Message) int {
	users := make(map[string]bool)
	for _, user := range msg.Mentions {
		if msg.Author != nil && user.ID == msg.Author.ID {
			continue
		}
		users[user.ID] = true
	}
	mentions := len(users) + len(msg.MentionRoles)
	if msg.MentionEveryone {
		mentions++
	}
	return mentions
}

// Record adds $weight instances of $category for $userID and reports whether the threshold was reached
func (d *SpamDetector) Record(guildID, userID string, category models.SpamCategory, weight int, at time.Time) bool {
	config, ok := d.settings.GuildSettings(guildID).Spam[category]
	if !ok || !config.Enabled {
		return false
	}
	return d.record(d.registry.Get(guildID), userID, category, config, weight, at)
}

func (d *SpamDetector) record(state *GuildState, userID string, category models.SpamCategory, config models.SpamPreventionSettings, weight int, at time.Time) bool {
	spam := state.spamOf(userID)
	spam.Lock()
	for spam.dropped {
		spam.Unlock()
		spam = state.spamOf(userID)
		spam.Lock()
	}
	defer spam.Unlock()

	window, ok := spam.windows[category]
	if !ok {
		window = NewWindow()
		spam.windows[category] = window
	}
	triggered, _ := window.Record(userID, at, weight, config.TimeInterval.Duration, config.RequiredSpamInstances)
	return triggered
}

// HandleMessage records $msg in every enabled category, deletes it if a
// threshold was reached and raises a single punishment for the collapsed
// categories. It returns the triggered categories.
func (d *SpamDetector) HandleMessage(msg *discordgo.Message, at time.Time) []models.SpamCategory {
	if msg.Author == nil || msg.GuildID == "" {
		return nil
	}
	settings := d.settings.GuildSettings(msg.GuildID)
	state := d.registry.Get(msg.GuildID)

	triggered := make([]models.SpamCategory, 0)
	for category, weight := range Weights(msg, settings.Spam) {
		config, ok := settings.Spam[category]
		if !ok || !config.Enabled {
			continue
		}
		required := config.RequiredSpamPerMessage
		if required <= 0 {
			required = 1
		}
		if weight < required {
			continue
		}
		if d.record(state, msg.Author.ID, category, config, weight, at) {
			triggered = append(triggered, category)
		}
	}
	if len(triggered) == 0 {
		return triggered
	}

	channelID, messageID := msg.ChannelID, msg.ID
	d.async(func() {
		err := d.deleter.DeleteMessage(channelID, messageID)
		if err != nil && !helpers.IsTargetGone(err) {
			logger().WithField("ChannelID", channelID).Warnf("unable to delete spam message: %s", err.Error())
		}
	})

	kind, duration := d.flag(state, msg.Author.ID, triggered, settings)
	detail := make([]string, 0, len(triggered))
	for _, category := range triggered {
		metrics.SpamTriggers.WithLabelValues(string(category)).Inc()
		detail = append(detail, string(category))
	}
	logger().WithField("GuildID", msg.GuildID).WithField("UserID", msg.Author.ID).
		Infof("spam detected (%s), raising %s", strings.Join(detail, ", "), kind.String())
	if kind != models.PunishmentNothing {
		d.punisher.Punish(msg.GuildID, msg.Author.ID, kind, duration, models.ReasonSpam, strings.Join(detail, ", "))
	}
	return triggered
}

// flag folds the triggered categories into the user's profile and returns
// the most severe punishment among them with its duration
func (d *SpamDetector) flag(state *GuildState, userID string, triggered []models.SpamCategory, settings models.GuildSettings) (models.PunishmentKind, time.Duration) {
	profile, _ := state.profiles.LoadOrCompute(userID, func() *SpamProfile {
		return &SpamProfile{Voters: make(map[string]bool)}
	})
	profile.Lock()
	defer profile.Unlock()

	kind := models.PunishmentNothing
	var duration time.Duration
	for _, category := range triggered {
		config := settings.Spam[category]
		if config.Punishment.MoreSevereThan(kind) {
			kind = config.Punishment
			duration = config.PunishmentDuration.Duration
		} else if config.Punishment == kind && config.PunishmentDuration.Duration > duration {
			duration = config.PunishmentDuration.Duration
		}
		if config.VotesForKick > 0 && (profile.VotesRequired == 0 || config.VotesForKick < profile.VotesRequired) {
			profile.VotesRequired = config.VotesForKick
		}
	}
	if kind.MoreSevereThan(profile.Punishment) {
		profile.Punishment = kind
		profile.Duration = duration
	} else if kind == profile.Punishment && duration > profile.Duration {
		profile.Duration = duration
	}
	return kind, duration
}

// HandleMentionVotes counts mentions of flagged users in $msg as votes to kick them.
// Reaching the threshold applies the most severe of a kick and the punishments the
// user accumulated. It returns the users whose vote threshold was reached.
func (d *SpamDetector) HandleMentionVotes(msg *discordgo.Message) []string {
	if msg.Author == nil || msg.GuildID == "" || len(msg.Mentions) == 0 {
		return nil
	}
	state, ok := d.registry.Lookup(msg.GuildID)
	if !ok {
		return nil
	}

	kicked := make([]string, 0)
	for _, mentioned := range msg.Mentions {
		if mentioned.ID == msg.Author.ID {
			continue
		}
		profile, ok := state.Profile(mentioned.ID)
		if !ok {
			continue
		}

		profile.Lock()
		if profile.VotesRequired <= 0 || profile.Voters[msg.Author.ID] {
			profile.Unlock()
			continue
		}
		profile.Voters[msg.Author.ID] = true
		reached := len(profile.Voters) >= profile.VotesRequired
		votes := len(profile.Voters)
		kind := models.MostSevere(profile.Punishment, models.PunishmentKickThenBan)
		var duration time.Duration
		if kind == profile.Punishment {
			duration = profile.Duration
		}
		if reached {
			profile.VotesRequired = 0
			profile.Voters = make(map[string]bool)
		}
		profile.Unlock()

		if !reached {
			continue
		}
		logger().WithField("GuildID", msg.GuildID).WithField("UserID", mentioned.ID).
			Infof("vote to kick reached %d votes, raising %s", votes, kind.String())
		d.punisher.Punish(msg.GuildID, mentioned.ID, kind, duration, models.ReasonVoteKick, "")
		kicked = append(kicked, mentioned.ID)
	}
	return kicked
}

// ResetProfiles forgets all flagged users, votes and accumulated severities
func (d *SpamDetector) ResetProfiles() int {
	var reset int
	d.registry.Range(func(state *GuildState) bool {
		state.profiles.Range(func(userID string, profile *SpamProfile) bool {
			state.profiles.Delete(userID)
			reset++
			return true
		})
		return true
	})
	return reset
}

// PruneIdle drops windows without entries in their interval before $now
func (d *SpamDetector) PruneIdle(now time.Time) int {
	var pruned int
	d.registry.Range(func(state *GuildState) bool {
		settings := d.settings.GuildSettings(state.GuildID)
		state.spam.Range(func(userID string, spam *userSpam) bool {
			spam.Lock()
			for category, window := range spam.windows {
				if window.Idle(now, settings.Spam[category].TimeInterval.Duration) {
					delete(spam.windows, category)
					pruned++
				}
			}
			spam.Unlock()
			state.spam.Compute(userID, func(current *userSpam, loaded bool) (*userSpam, bool) {
				if !loaded {
					return current, true
				}
				current.Lock()
				defer current.Unlock()
				if len(current.windows) > 0 {
					return current, false
				}
				current.dropped = true
				return current, true
			})
			return true
		})
		return true
	})
	return pruned
}
