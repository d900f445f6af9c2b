package helpers

import (
	"os"
	"sync"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var settingsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// SettingsStore serves the read-only guild settings, loaded from a json file:
// {"default": {...}, "guilds": {"<guild id>": {...}}}
// guild objects are applied on top of the default object
type SettingsStore struct {
	sync.RWMutex
	path     string
	modTime  time.Time
	defaults models.GuildSettings
	guilds   map[string]models.GuildSettings
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		defaults: DefaultGuildSettings(),
		guilds:   make(map[string]models.GuildSettings),
	}
}

// LoadSettingsStore reads $path, an empty path returns a store serving the defaults
func LoadSettingsStore(path string) (*SettingsStore, error) {
	store := NewSettingsStore()
	store.path = path
	if path == "" {
		return store, nil
	}
	_, err := store.Reload()
	return store, err
}

// DefaultGuildSettings are used for every guild without a configuration
func DefaultGuildSettings() models.GuildSettings {
	spam := make(map[models.SpamCategory]models.SpamPreventionSettings)
	for _, category := range models.SpamCategories {
		spam[category] = models.SpamPreventionSettings{
			TimeInterval:           models.NewDuration(5 * time.Second),
			RequiredSpamInstances:  5,
			RequiredSpamPerMessage: 1,
			Punishment:             models.PunishmentRoleMute,
			PunishmentDuration:     models.NewDuration(10 * time.Minute),
			ShortMessageMaxLength:  5,
			LongMessageMinLength:   1500,
		}
	}
	return models.GuildSettings{
		Spam: spam,
		Raid: models.RaidPreventionSettings{
			TimeInterval:      models.NewDuration(10 * time.Second),
			RequiredInstances: 5,
			Punishment:        models.PunishmentBan,
		},
		RapidJoin: models.RaidPreventionSettings{
			TimeInterval:      models.NewDuration(10 * time.Second),
			RequiredInstances: 10,
			Punishment:        models.PunishmentKick,
		},
		Slowmode: models.SlowmodeSettings{
			Messages: 5,
			Interval: models.NewDuration(5 * time.Second),
		},
	}
}

// Reload parses the settings file again if it changed since the last load
func (s *SettingsStore) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return false, errors.Wrap(err, "unable to stat guild settings")
	}
	s.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.RUnlock()
	if unchanged {
		return false, nil
	}

	container, err := gabs.ParseJSONFile(s.path)
	if err != nil {
		return false, errors.Wrap(err, "unable to parse guild settings")
	}
	err = s.load(container)
	if err != nil {
		return false, err
	}

	s.Lock()
	s.modTime = info.ModTime()
	s.Unlock()
	return true, nil
}

func (s *SettingsStore) load(container *gabs.Container) error {
	var defaultBytes []byte
	if container.Exists("default") {
		defaultBytes = container.S("default").Bytes()
	}

	defaults, err := decodeGuildSettings(defaultBytes)
	if err != nil {
		return errors.Wrap(err, "invalid default settings")
	}

	guilds := make(map[string]models.GuildSettings)
	if container.Exists("guilds") {
		children, err := container.S("guilds").ChildrenMap()
		if err != nil {
			return errors.Wrap(err, "guilds has to be an object")
		}
		for guildID, child := range children {
			settings, err := decodeGuildSettings(defaultBytes, child.Bytes())
			if err != nil {
				return errors.Wrap(err, "invalid settings for guild "+guildID)
			}
			settings.GuildID = guildID
			guilds[guildID] = settings
		}
	}

	s.Lock()
	s.defaults = defaults
	s.guilds = guilds
	s.Unlock()
	return nil
}

func decodeGuildSettings(layers ...[]byte) (models.GuildSettings, error) {
	settings := DefaultGuildSettings()
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		err := settingsJSON.Unmarshal(layer, &settings)
		if err != nil {
			return settings, err
		}
	}
	return settings, nil
}

// Set replaces the settings of one guild
func (s *SettingsStore) Set(settings models.GuildSettings) {
	s.Lock()
	s.guilds[settings.GuildID] = settings
	s.Unlock()
}

// GuildSettings returns the settings of $guildID, never nil
func (s *SettingsStore) GuildSettings(guildID string) models.GuildSettings {
	s.RLock()
	defer s.RUnlock()

	if settings, ok := s.guilds[guildID]; ok {
		return settings
	}
	settings := s.defaults
	settings.GuildID = guildID
	return settings
}
