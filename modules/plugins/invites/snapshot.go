package invites

import (
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/go-redis/cache"
	"github.com/pkg/errors"
)

const snapshotTTL = 7 * 24 * time.Hour

// SnapshotStore persists the last observed use counts of a guild
type SnapshotStore interface {
	Save(snapshot models.InviteSnapshot) error
	Load(guildID string) (models.InviteSnapshot, bool, error)
}

// RedisSnapshotStore keeps snapshots in redis through the msgpack cache codec
type RedisSnapshotStore struct {
	codec *cache.Codec
}

func NewRedisSnapshotStore(codec *cache.Codec) *RedisSnapshotStore {
	return &RedisSnapshotStore{codec: codec}
}

func snapshotKey(guildID string) string {
	return "robyul-automod:invites:" + guildID
}

func (s *RedisSnapshotStore) Save(snapshot models.InviteSnapshot) error {
	err := s.codec.Set(&cache.Item{
		Key:        snapshotKey(snapshot.GuildID),
		Object:     snapshot,
		Expiration: snapshotTTL,
	})
	return errors.Wrap(err, "unable to save invite snapshot")
}

func (s *RedisSnapshotStore) Load(guildID string) (models.InviteSnapshot, bool, error) {
	var snapshot models.InviteSnapshot
	err := s.codec.Get(snapshotKey(guildID), &snapshot)
	if err == cache.ErrCacheMiss {
		return snapshot, false, nil
	}
	if err != nil {
		return snapshot, false, errors.Wrap(err, "unable to load invite snapshot")
	}
	return snapshot, true, nil
}
