package automod

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
)

const (
	DefaultRegexTimeout = 250 * time.Millisecond
	// messages older than this are not checked
	phraseMaxMessageAge = time.Hour
	regexCacheSize      = 1024
)

type regexMatcher func(ctx context.Context, re *regexp.Regexp, text string) (bool, error)

// matchWithTimeout gives up waiting when $ctx is done, the match itself runs to completion
func matchWithTimeout(ctx context.Context, re *regexp.Regexp, text string) (bool, error) {
	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(text)
	}()
	select {
	case matched := <-done:
		return matched, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// PhraseEnforcer deletes messages containing banned phrases and punishes
// users once they reach the offense threshold of a phrase tier
type PhraseEnforcer struct {
	registry     *Registry
	settings     SettingsProvider
	punisher     Punisher
	deleter      MessageDeleter
	lookup       platform.Lookup
	regexes      *lru.Cache[string, *regexp.Regexp]
	invalid      *lru.Cache[string, bool]
	regexTimeout time.Duration
	match        regexMatcher
	now          func() time.Time
	async        func(func())
}

func NewPhraseEnforcer(registry *Registry, settings SettingsProvider, punisher Punisher, deleter MessageDeleter, lookup platform.Lookup) *PhraseEnforcer {
	regexes, _ := lru.New[string, *regexp.Regexp](regexCacheSize)
	invalid, _ := lru.New[string, bool](regexCacheSize)
	return &PhraseEnforcer{
		registry:     registry,
		settings:     settings,
		punisher:     punisher,
		deleter:      deleter,
		lookup:       lookup,
		regexes:      regexes,
		invalid:      invalid,
		regexTimeout: DefaultRegexTimeout,
		match:        matchWithTimeout,
		now:          time.Now,
		async:        helpers.Go,
	}
}

func (e *PhraseEnforcer) compile(pattern string) (*regexp.Regexp, bool) {
	if re, ok := e.regexes.Get(pattern); ok {
		return re, true
	}
	if e.invalid.Contains(pattern) {
		return nil, false
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		e.invalid.Add(pattern, true)
		logger().Warnf("ignoring invalid banned phrase pattern %q: %s", pattern, err.Error())
		return nil, false
	}
	e.regexes.Add(pattern, re)
	return re, true
}

// Evaluate returns the first rule matching $content: plain phrases are
// compared case insensitive first, then regular expressions are tried
func (e *PhraseEnforcer) Evaluate(content string, rules []models.PhraseRule) (models.PhraseRule, bool) {
	if content == "" {
		return models.PhraseRule{}, false
	}
	folded := cases.Fold().String(content)
	for _, rule := range rules {
		if rule.Regex || rule.Phrase == "" {
			continue
		}
		if strings.Contains(folded, cases.Fold().String(rule.Phrase)) {
			return rule, true
		}
	}

	for _, rule := range rules {
		if !rule.Regex || rule.Phrase == "" {
			continue
		}
		re, ok := e.compile(rule.Phrase)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), e.regexTimeout)
		matched, err := e.match(ctx, re, content)
		cancel()
		if err != nil {
			metrics.RegexTimeouts.Inc()
			logger().Warnf("banned phrase pattern %q timed out after %s, treating as no match", rule.Phrase, e.regexTimeout.String())
			continue
		}
		if matched {
			return rule, true
		}
	}
	return models.PhraseRule{}, false
}

func (e *PhraseEnforcer) isAdmin(guildID, userID string, settings models.GuildSettings) bool {
	guild, ok := e.lookup.CachedGuild(guildID)
	if !ok {
		return false
	}
	member, ok := e.lookup.CachedMember(guildID, userID)
	if !ok {
		return false
	}
	return helpers.IsGuildAdmin(guild, member, settings)
}

// Enforce checks $msg against the guild's banned phrases. A matching message
// is deleted and counted towards the offense threshold of the phrase's tier.
func (e *PhraseEnforcer) Enforce(msg *discordgo.Message) (models.PhraseRule, bool) {
	if msg.Author == nil || msg.GuildID == "" {
		return models.PhraseRule{}, false
	}
	settings := e.settings.GuildSettings(msg.GuildID)
	if !settings.BannedPhrases.Enabled || len(settings.BannedPhrases.Phrases) == 0 {
		return models.PhraseRule{}, false
	}
	if !msg.Timestamp.IsZero() && e.now().Sub(msg.Timestamp) > phraseMaxMessageAge {
		return models.PhraseRule{}, false
	}
	if e.isAdmin(msg.GuildID, msg.Author.ID, settings) {
		return models.PhraseRule{}, false
	}

	rule, matched := e.Evaluate(msg.Content, settings.BannedPhrases.Phrases)
	if !matched {
		return rule, false
	}
	metrics.PhraseMatches.WithLabelValues(strconv.Itoa(rule.Tier)).Inc()

	channelID, messageID := msg.ChannelID, msg.ID
	e.async(func() {
		err := e.deleter.DeleteMessage(channelID, messageID)
		if err != nil && !helpers.IsTargetGone(err) {
			logger().WithField("ChannelID", channelID).Warnf("unable to delete message with banned phrase: %s", err.Error())
		}
	})

	threshold, ok := settings.BannedPhrases.Threshold(rule.Tier)
	state := e.registry.Get(msg.GuildID)
	var fired bool
	state.offenses.Compute(offenseKey{UserID: msg.Author.ID, Tier: rule.Tier}, func(count int, loaded bool) (int, bool) {
		count++
		if ok && threshold.Occurrences > 0 && count >= threshold.Occurrences {
			fired = true
			return 0, true
		}
		return count, false
	})

	logger().WithField("GuildID", msg.GuildID).WithField("UserID", msg.Author.ID).
		Infof("removed message with banned phrase of tier %d", rule.Tier)
	if fired {
		e.punisher.Punish(msg.GuildID, msg.Author.ID, threshold.Punishment, threshold.Duration.Duration,
			models.ReasonBannedPhrase, "tier "+strconv.Itoa(rule.Tier))
	}
	return rule, true
}
