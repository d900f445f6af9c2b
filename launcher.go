package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/Seklfreak/robyul-automod/logging"
	"github.com/Seklfreak/robyul-automod/metrics"
	"github.com/Seklfreak/robyul-automod/modules"
	"github.com/Seklfreak/robyul-automod/modules/plugins/invites"
	"github.com/Seklfreak/robyul-automod/modules/plugins/mod"
	"github.com/Seklfreak/robyul-automod/platform"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/go-redis/redis"
	"github.com/kz/discordrus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Entrypoint
func main() {
	app := cli.App{
		Name:  "robyul-automod",
		Usage: "automated moderation and event logging for discord guilds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.json",
				Usage:   "path to the bot config",
				EnvVars: []string{"AUTOMOD_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log debug messages",
			},
		},
		Action: run,
	}
	app.RunAndExitOnError()
}

func run(cctx *cli.Context) error {
	log := logrus.New()
	log.Out = os.Stdout
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339}
	log.Hooks = make(logrus.LevelHooks)
	cache.SetLogger(log)

	// Read config
	err := helpers.LoadConfig(cctx.String("config"))
	if err != nil {
		return err
	}
	if cctx.Bool("debug") || helpers.ConfigBool("debug") {
		log.Level = logrus.DebugLevel
	}

	if path := helpers.ConfigString("logging.jsonfile", ""); path != "" {
		fileHook, err := logging.NewLogrusFileHook(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
		if err != nil {
			log.WithField("module", "launcher").Error("logrus file hook failed, err:", err.Error())
		} else {
			log.Hooks.Add(fileHook)
			defer fileHook.Close()
		}
	}

	if webhook := helpers.ConfigString("logging.discord_webhook", ""); webhook != "" {
		log.Hooks.Add(discordrus.NewHook(
			webhook,
			logrus.ErrorLevel,
			&discordrus.Opts{
				Username:           "Automod Logging",
				DisableTimestamp:   false,
				TimestampFormat:    "Jan 2 15:04:05.00000",
				EnableCustomColors: true,
				CustomLevelColors: &discordrus.LevelColors{
					Error: 13631488,
					Panic: 13631488,
					Fatal: 13631488,
				},
			},
		))
	}

	log.WithField("module", "launcher").Info("Booting Robyul Automod...")

	// Start metric server
	metrics.Init(helpers.ConfigString("metrics.listen", ""))

	// Call home
	if dsn := helpers.ConfigString("sentry", ""); dsn != "" {
		log.WithField("module", "launcher").Info("[SENTRY] Calling home...")
		err = raven.SetDSN(dsn)
		if err != nil {
			return err
		}
		log.WithField("module", "launcher").Info("[SENTRY] Someone picked up the phone \\^-^/")
	}

	options := modules.Options{
		SendInterval:         helpers.ConfigDuration("automod.send_interval", 0),
		MaxPending:           helpers.ConfigInt("automod.max_pending", 0),
		MessageCacheSize:     helpers.ConfigInt("automod.message_cache_size", 0),
		MessageCacheTTL:      helpers.ConfigDuration("automod.message_cache_ttl", 0),
		SweepInterval:        helpers.ConfigDuration("automod.sweep_interval", 0),
		ProfileResetInterval: helpers.ConfigDuration("automod.profile_reset_interval", 0),
		PruneInterval:        helpers.ConfigDuration("automod.prune_interval", 0),
		FlushInterval:        helpers.ConfigDuration("automod.flush_interval", 0),
		ReloadInterval:       helpers.ConfigDuration("automod.settings_reload_interval", 0),
	}

	// Connecting to redis
	if address := helpers.ConfigString("redis.address", ""); address != "" {
		log.WithField("module", "launcher").Info("Connecting to redis...")
		redisClient := redis.NewClient(&redis.Options{
			Addr:     address,
			Password: helpers.ConfigString("redis.password", ""),
			DB:       helpers.ConfigInt("redis.db", 0),
		})
		_, err = redisClient.Ping().Result()
		if err != nil {
			return err
		}
		cache.SetRedisClient(redisClient)
		options.Store = mod.NewRedisStore(redisClient, helpers.ConfigString("redis.prefix", mod.DefaultRedisPrefix))
		options.Snapshots = invites.NewRedisSnapshotStore(cache.GetRedisCacheCodec())
	} else {
		log.WithField("module", "launcher").Warn("no redis configured, pending punishments will not survive restarts")
	}

	settings, err := helpers.LoadSettingsStore(helpers.ConfigString("settings.path", "settings.json"))
	if err != nil {
		return err
	}

	// Connect and add event handlers
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		pc, file, line, _ := runtime.Caller(caller)

		files := strings.Split(file, "/")
		file = files[len(files)-1]

		name := runtime.FuncForPC(pc).Name()
		fns := strings.Split(name, ".")
		name = fns[len(fns)-1]

		msg := format
		if strings.Contains(msg, "%") {
			msg = fmt.Sprintf(format, a...)
		}

		switch msgL {
		case discordgo.LogError:
			log.WithField("module", "discordgo").Errorf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogWarning:
			log.WithField("module", "discordgo").Warnf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogInformational:
			log.WithField("module", "discordgo").Infof("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogDebug:
			log.WithField("module", "discordgo").Debugf("%s:%d:%s() %s", file, line, name, msg)
		}
	}
	log.WithField("module", "launcher").Info("Connecting Robyul Automod to discord...")
	discord, err := discordgo.New("Bot " + helpers.ConfigString("discord.token", ""))
	if err != nil {
		return err
	}

	discord.Lock()
	discord.Debug = false
	discord.LogLevel = discordgo.LogInformational
	discord.StateEnabled = true
	discord.State.MaxMessageCount = 0
	discord.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent
	discord.Unlock()

	engine = modules.NewEngine(platform.NewDiscord(discord), settings, options)

	discord.AddHandler(BotOnReady)
	discord.AddHandler(metrics.OnReady)
	discord.AddHandler(BotOnMemberListChunk)
	discord.AddHandler(BotOnGuildCreate)
	discord.AddHandler(BotOnGuildDelete)
	discord.AddHandler(BotOnMessageCreate)
	discord.AddHandler(BotOnMessageUpdate)
	discord.AddHandler(BotOnMessageDelete)
	discord.AddHandler(BotOnMessageDeleteBulk)
	discord.AddHandler(BotOnGuildMemberAdd)
	discord.AddHandler(BotOnGuildMemberRemove)
	discord.AddHandler(BotOnGuildMemberUpdate)
	discord.AddHandler(BotOnGuildBanAdd)
	discord.AddHandler(BotOnGuildBanRemove)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	// Connect to discord
	err = discord.Open()
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		return err
	}

	// Make a channel that waits for a os signal
	runtimeChannel := make(chan os.Signal, 1)
	signal.Notify(runtimeChannel, os.Interrupt, syscall.SIGTERM)

	// Wait until the os wants us to shutdown
	<-runtimeChannel

	log.WithField("module", "launcher").Info("Robyul Automod is stopping")
	engine.Stop()
	log.WithField("module", "launcher").Info("Disconnecting bot discord session...")
	return discord.Close()
}
