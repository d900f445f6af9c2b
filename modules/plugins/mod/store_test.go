package mod

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cache.SetLogger(logrus.New())
	os.Exit(m.Run())
}

func newRedisStore(t *testing.T) *RedisStore {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:pending")
}

func stores(t *testing.T) map[string]PendingStore {
	return map[string]PendingStore{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
	}
}

var storeEpoch = time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

func pendingJob(userID string, kind models.PunishmentKind, dueAt time.Time) models.PendingPunishment {
	return models.PendingPunishment{
		ID:        "job-" + userID,
		GuildID:   "guild",
		UserID:    userID,
		Kind:      kind,
		DueAt:     dueAt,
		RoleID:    "muted",
		Reason:    models.ReasonSpam,
		CreatedAt: storeEpoch,
	}
}

func TestStorePutReplacesSameKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			require.NoError(t, store.Put(pendingJob("1", models.PunishmentRoleMute, storeEpoch.Add(time.Minute))))
			require.NoError(t, store.Put(pendingJob("1", models.PunishmentRoleMute, storeEpoch.Add(time.Hour))))
			require.NoError(t, store.Put(pendingJob("1", models.PunishmentBan, storeEpoch.Add(time.Minute))))

			length, err := store.Len()
			assert.NoError(err)
			assert.Equal(2, length)

			due, err := store.Due(storeEpoch.Add(30 * time.Minute))
			assert.NoError(err)
			assert.Equal([]models.PendingKey{{GuildID: "guild", UserID: "1", Kind: models.PunishmentBan}}, due)
		})
	}
}

func TestStoreClaimDueRespectsDueTime(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			job := pendingJob("2", models.PunishmentVoiceMute, storeEpoch.Add(time.Minute))
			require.NoError(t, store.Put(job))

			_, ok, err := store.ClaimDue(job.Key(), storeEpoch)
			assert.NoError(err)
			assert.False(ok)

			claimed, ok, err := store.ClaimDue(job.Key(), storeEpoch.Add(time.Minute))
			assert.NoError(err)
			assert.True(ok)
			assert.Equal(job.UserID, claimed.UserID)
			assert.Equal(job.Kind, claimed.Kind)
			assert.Equal("muted", claimed.RoleID)
			assert.True(job.DueAt.Equal(claimed.DueAt))

			_, ok, err = store.Claim(job.Key())
			assert.NoError(err)
			assert.False(ok, "a job is handed out only once")
		})
	}
}

func TestStoreConcurrentClaimsHandOutOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			job := pendingJob("3", models.PunishmentBan, storeEpoch)
			require.NoError(t, store.Put(job))

			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					var ok bool
					if i%2 == 0 {
						_, ok, _ = store.Claim(job.Key())
					} else {
						_, ok, _ = store.ClaimDue(job.Key(), storeEpoch.Add(time.Second))
					}
					if ok {
						atomic.AddInt32(&wins, 1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestStoreAll(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(pendingJob("4", models.PunishmentDeafen, storeEpoch)))
			require.NoError(t, store.Put(pendingJob("5", models.PunishmentRoleMute, storeEpoch)))

			jobs, err := store.All()
			assert.NoError(t, err)
			assert.Len(t, jobs, 2)
		})
	}
}
