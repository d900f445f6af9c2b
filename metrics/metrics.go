package metrics

import (
	"net/http"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsReceived counts all dispatched discord events by type
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_events_received",
		Help: "Number of discord events dispatched to the moderation engine",
	}, []string{"type"})

	SpamTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_spam_triggers",
		Help: "Number of spam windows which reached their threshold",
	}, []string{"category"})

	RaidTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_raid_triggers",
		Help: "Number of raid incidents",
	}, []string{"kind"})

	SlowmodeDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_slowmode_deletions",
		Help: "Number of messages removed for exceeding the slowmode quota",
	})

	PhraseMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_phrase_matches",
		Help: "Number of banned phrase matches by tier",
	}, []string{"tier"})

	RegexTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_phrase_regex_timeouts",
		Help: "Number of banned phrase regular expressions which did not finish in time",
	})

	PunishmentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_punishments_applied",
		Help: "Number of punishments dispatched to discord",
	}, []string{"kind", "reason"})

	PunishmentsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_punishments_skipped",
		Help: "Number of punishments skipped",
	}, []string{"cause"})

	ReversalsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_reversals_executed",
		Help: "Number of temporary punishments lifted by the timer service",
	}, []string{"kind"})

	ReversalsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_reversals_cancelled",
		Help: "Number of pending reversals cancelled before they were due",
	})

	PendingReversals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automod_reversals_pending",
		Help: "Number of pending reversals seen by the last sweep",
	})

	OutboundSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_outbound_sent",
		Help: "Number of log messages delivered",
	})

	OutboundFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_outbound_failed",
		Help: "Number of log messages dropped after a failed delivery",
	})

	OutboundDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automod_outbound_dropped",
		Help: "Number of log messages dropped because the queue was full",
	})

	OutboundQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automod_outbound_queue_length",
		Help: "Number of log messages waiting for delivery",
	})

	DeletedMessageReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_deleted_message_reports",
		Help: "Number of deleted message reports by format",
	}, []string{"format"})

	InviteAttributions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automod_invite_attributions",
		Help: "Number of member joins by attribution result",
	}, []string{"result"})

	GuildCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automod_guilds",
		Help: "Number of guilds with moderation state",
	})

	// Uptime stores the timestamp of the bot's boot
	Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automod_boot_timestamp_seconds",
		Help: "Unix timestamp of the bot's boot",
	})
)

// Init starts the metrics http server on $listen, an empty address disables it
func Init(listen string) {
	Uptime.Set(float64(time.Now().Unix()))
	if listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(listen, mux)
		if err != nil {
			cache.GetLogger().WithField("module", "metrics").Errorf("metrics server stopped: %s", err.Error())
		}
	}()
	cache.GetLogger().WithField("module", "metrics").Infof("Listening on %s", listen)
}

// OnReady counts gateway (re)connections
func OnReady(session *discordgo.Session, event *discordgo.Ready) {
	EventsReceived.WithLabelValues("ready").Inc()
}
