package mod

import (
	"strconv"
	"time"

	"github.com/Seklfreak/robyul-automod/models"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

const DefaultRedisPrefix = "robyul-automod:pending"

// claim atomically removes a job and returns its payload
var claimScript = redis.NewScript(`
local payload = redis.call("HGET", KEYS[1], ARGV[1])
if not payload then
	return false
end
redis.call("HDEL", KEYS[1], ARGV[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return payload
`)

// claimDue only removes the job if its due time is not after ARGV[2]
var claimDueScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[2], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return false
end
local payload = redis.call("HGET", KEYS[1], ARGV[1])
redis.call("HDEL", KEYS[1], ARGV[1])
redis.call("ZREM", KEYS[2], ARGV[1])
if not payload then
	return false
end
return payload
`)

// RedisStore is a PendingStore shared by all processes using the same redis,
// jobs are stored as msgpack in a hash and indexed by due time in a sorted set
type RedisStore struct {
	client  *redis.Client
	jobsKey string
	dueKey  string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:  client,
		jobsKey: prefix + ":jobs",
		dueKey:  prefix + ":due",
	}
}

func dueScore(t time.Time) float64 {
	return float64(t.UnixNano() / int64(time.Millisecond))
}

func (s *RedisStore) Put(job models.PendingPunishment) error {
	payload, err := msgpack.Marshal(&job)
	if err != nil {
		return errors.Wrap(err, "unable to encode pending punishment")
	}
	key := job.Key().String()
	_, err = s.client.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HSet(s.jobsKey, key, payload)
		pipe.ZAdd(s.dueKey, redis.Z{Score: dueScore(job.DueAt), Member: key})
		return nil
	})
	return errors.Wrap(err, "unable to store pending punishment")
}

func (s *RedisStore) runClaim(script *redis.Script, args ...interface{}) (models.PendingPunishment, bool, error) {
	var job models.PendingPunishment
	result, err := script.Run(s.client, []string{s.jobsKey, s.dueKey}, args...).Result()
	if err == redis.Nil {
		return job, false, nil
	}
	if err != nil {
		return job, false, errors.Wrap(err, "unable to claim pending punishment")
	}
	payload, ok := result.(string)
	if !ok {
		return job, false, errors.Errorf("unexpected claim result %T", result)
	}
	err = msgpack.Unmarshal([]byte(payload), &job)
	if err != nil {
		return job, false, errors.Wrap(err, "unable to decode pending punishment")
	}
	return job, true, nil
}

func (s *RedisStore) Claim(key models.PendingKey) (models.PendingPunishment, bool, error) {
	return s.runClaim(claimScript, key.String())
}

func (s *RedisStore) ClaimDue(key models.PendingKey, now time.Time) (models.PendingPunishment, bool, error) {
	return s.runClaim(claimDueScript, key.String(), strconv.FormatFloat(dueScore(now), 'f', 0, 64))
}

func (s *RedisStore) Due(now time.Time) ([]models.PendingKey, error) {
	members, err := s.client.ZRangeByScore(s.dueKey, redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatFloat(dueScore(now), 'f', 0, 64),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "unable to list due punishments")
	}

	keys := make([]models.PendingKey, 0, len(members))
	for _, member := range members {
		key, err := models.ParsePendingKey(member)
		if err != nil {
			logger().Warnf("skipping invalid pending key %q: %s", member, err.Error())
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *RedisStore) All() ([]models.PendingPunishment, error) {
	payloads, err := s.client.HGetAll(s.jobsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "unable to list pending punishments")
	}

	jobs := make([]models.PendingPunishment, 0, len(payloads))
	for key, payload := range payloads {
		var job models.PendingPunishment
		err = msgpack.Unmarshal([]byte(payload), &job)
		if err != nil {
			logger().Warnf("skipping undecodable pending punishment %s: %s", key, err.Error())
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *RedisStore) Len() (int, error) {
	length, err := s.client.HLen(s.jobsKey).Result()
	return int(length), errors.Wrap(err, "unable to count pending punishments")
}
