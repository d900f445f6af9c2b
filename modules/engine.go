package modules

import (
	"context"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/Seklfreak/robyul-automod/modules/plugins/automod"
	"github.com/Seklfreak/robyul-automod/modules/plugins/eventlog"
	"github.com/Seklfreak/robyul-automod/modules/plugins/invites"
	"github.com/Seklfreak/robyul-automod/modules/plugins/mod"
	"github.com/Seklfreak/robyul-automod/outbound"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/Seklfreak/robyul-automod/ratelimits"
	"github.com/Seklfreak/robyul-automod/scheduler"
	"github.com/sirupsen/logrus"
)

const (
	TaskSweepPunishments = "punishments.sweep"
	TaskResetProfiles    = "automod.profiles.reset"
	TaskPrune            = "automod.prune"
	TaskFlushDeleted     = "eventlog.flush"
	TaskReloadSettings   = "settings.reload"
)

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "modules")
}

// Options configures an Engine, zero values fall back to the defaults
type Options struct {
	// Store keeps pending punishment reversals, a MemoryStore if nil
	Store mod.PendingStore
	// Snapshots persists invite use counts, optional
	Snapshots invites.SnapshotStore

	SendInterval     time.Duration
	MaxPending       int
	MessageCacheSize int
	MessageCacheTTL  time.Duration

	SweepInterval        time.Duration
	ProfileResetInterval time.Duration
	PruneInterval        time.Duration
	FlushInterval        time.Duration
	ReloadInterval       time.Duration
}

func (o Options) withDefaults() Options {
	if o.Store == nil {
		o.Store = mod.NewMemoryStore()
	}
	if o.SendInterval <= 0 {
		o.SendInterval = outbound.DefaultMinInterval
	}
	if o.MaxPending <= 0 {
		o.MaxPending = outbound.DefaultMaxPending
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = mod.DefaultSweepInterval
	}
	if o.ProfileResetInterval <= 0 {
		o.ProfileResetInterval = time.Hour
	}
	if o.PruneInterval <= 0 {
		o.PruneInterval = time.Minute
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.ReloadInterval <= 0 {
		o.ReloadInterval = 15 * time.Second
	}
	return o
}

// Engine wires the detectors, the resolver and the event log together
// and is fed by the discord event handlers
type Engine struct {
	platform platform.Platform
	settings *helpers.SettingsStore
	options  Options

	registry *automod.Registry
	spam     *automod.SpamDetector
	raids    *automod.RaidDetector
	phrases  *automod.PhraseEnforcer
	slowmode *ratelimits.SlowmodeContainer

	timers   *mod.TimerService
	resolver *mod.Resolver

	outbound *outbound.Queue
	messages *eventlog.MessageCache
	deleted  *eventlog.Batcher
	eventLog *eventlog.EventLog

	scheduler *scheduler.Scheduler
	now       func() time.Time
	async     func(func())
}

func NewEngine(discord platform.Platform, settings *helpers.SettingsStore, options Options) *Engine {
	options = options.withDefaults()
	e := &Engine{
		platform: discord,
		settings: settings,
		options:  options,
		now:      time.Now,
		async:    helpers.Go,
	}

	e.registry = automod.NewRegistry(func(guildID string) *invites.Cache {
		return invites.NewCache(guildID, discord, options.Snapshots)
	})
	e.timers = mod.NewTimerService(options.Store, discord)
	e.resolver = mod.NewResolver(discord, e.timers, settings)

	e.spam = automod.NewSpamDetector(e.registry, settings, e.resolver, discord)
	e.raids = automod.NewRaidDetector(e.registry, settings, e.resolver)
	e.phrases = automod.NewPhraseEnforcer(e.registry, settings, e.resolver, discord, discord)
	e.slowmode = ratelimits.NewSlowmodeContainer()

	e.outbound = outbound.NewQueue(discord, options.SendInterval, options.MaxPending)
	e.messages = eventlog.NewMessageCache(options.MessageCacheSize, options.MessageCacheTTL)
	e.deleted = eventlog.NewBatcher(settings, e.outbound)
	e.eventLog = eventlog.NewEventLog(settings, e.outbound)

	e.resolver.OnApplied = func(outcome mod.Outcome) {
		e.eventLog.PunishmentApplied(outcome)
	}
	e.timers.OnReversed = func(job models.PendingPunishment) {
		e.eventLog.PunishmentReversed(job)
	}

	e.scheduler = scheduler.New(0)
	e.registerTasks()
	return e
}

func (e *Engine) registerTasks() {
	e.scheduler.Register(TaskSweepPunishments, e.options.SweepInterval, func(now time.Time) {
		if reversed := e.timers.Sweep(now); reversed > 0 {
			logger().Debugf("reversing %d punishments", reversed)
		}
	})
	e.scheduler.Register(TaskResetProfiles, e.options.ProfileResetInterval, func(now time.Time) {
		if reset := e.spam.ResetProfiles(); reset > 0 {
			logger().Infof("reset %d spam profiles", reset)
		}
	})
	e.scheduler.Register(TaskPrune, e.options.PruneInterval, func(now time.Time) {
		windows := e.spam.PruneIdle(now)
		limiters := e.slowmode.Prune(now)
		logger().Debugf("pruned %d idle spam windows and %d slowmode limiters", windows, limiters)
	})
	e.scheduler.Register(TaskFlushDeleted, e.options.FlushInterval, func(now time.Time) {
		e.deleted.Flush(now)
	})
	e.scheduler.Register(TaskReloadSettings, e.options.ReloadInterval, func(now time.Time) {
		changed, err := e.settings.Reload()
		if err != nil {
			logger().Errorf("reloading guild settings failed: %s", err.Error())
			return
		}
		if changed {
			logger().Info("reloaded guild settings")
		}
	})
}

// Start runs the outbound queue and the scheduled tasks until $ctx is done
func (e *Engine) Start(ctx context.Context) {
	e.outbound.Start(ctx)
	e.scheduler.Start(ctx)

	pending := e.timers.Pending()
	logger().Infof("engine started, %d punishment reversals pending", len(pending))
}

// Stop reports the deleted messages still waiting in open batches
func (e *Engine) Stop() {
	flushed := e.deleted.FlushAll()
	logger().Infof("engine stopped, flushed %d deleted message batches, %d log messages queued",
		flushed, e.outbound.Len())
}

func (e *Engine) Scheduler() *scheduler.Scheduler {
	return e.scheduler
}

func (e *Engine) Timers() *mod.TimerService {
	return e.timers
}

func (e *Engine) Resolver() *mod.Resolver {
	return e.resolver
}

func (e *Engine) Registry() *automod.Registry {
	return e.registry
}
