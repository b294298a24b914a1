package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"postapi/internal/constants"
	apperrors "postapi/pkg/errors"
)

// Every item is a hash under <prefix>item:<uuid>. Unclaimed items sit in the
// pending zset scored by seq, claimed ones in the leased zset scored by lease expiry.
var upsertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	redis.call('HSET', KEYS[1], 'bundle', ARGV[2], 'provider_id', ARGV[3], 'payload', ARGV[4], 'content_hash', ARGV[5])
	redis.call('HINCRBY', KEYS[1], 'version', 1)
	redis.call('HDEL', KEYS[1], 'claimed_at', 'lease_expires_at')
	local seq = redis.call('HGET', KEYS[1], 'seq')
	redis.call('ZREM', KEYS[3], ARGV[1])
	redis.call('ZADD', KEYS[2], seq, ARGV[1])
	return tonumber(seq)
end
local seq = redis.call('INCR', KEYS[4])
redis.call('HSET', KEYS[1],
	'uuid', ARGV[1], 'bundle', ARGV[2], 'provider_id', ARGV[3], 'payload', ARGV[4],
	'content_hash', ARGV[5], 'created_at', ARGV[6], 'seq', seq, 'version', 1)
redis.call('ZADD', KEYS[2], seq, ARGV[1])
return seq
`)

var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[1])
for _, id in ipairs(expired) do
	local key = ARGV[3] .. id
	redis.call('ZREM', KEYS[2], id)
	local seq = redis.call('HGET', key, 'seq')
	if seq then
		redis.call('HDEL', key, 'claimed_at', 'lease_expires_at')
		redis.call('ZADD', KEYS[1], seq, id)
	end
end
local wanted = {}
for i = 4, #ARGV do
	wanted[ARGV[i]] = true
end
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	local key = ARGV[3] .. id
	local bundle = redis.call('HGET', key, 'bundle')
	if bundle and (#ARGV < 4 or wanted[bundle]) then
		redis.call('ZREM', KEYS[1], id)
		redis.call('ZADD', KEYS[2], ARGV[2], id)
		redis.call('HSET', key, 'claimed_at', ARGV[1], 'lease_expires_at', ARGV[2])
		return redis.call('HGETALL', key)
	end
end
return false
`)

var deleteScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'version') == ARGV[2] then
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[2], ARGV[1])
	redis.call('ZREM', KEYS[3], ARGV[1])
	return 1
end
return 0
`)

// RedisStore keeps the queue in Redis. All mutations run as Lua scripts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	lease  time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, lease time.Duration, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		client: client,
		prefix: constants.RedisKeyPrefixQueue,
		lease:  lease,
		now:    o.now,
	}
}

func (s *RedisStore) itemPrefix() string        { return s.prefix + "item:" }
func (s *RedisStore) itemKey(id string) string { return s.itemPrefix() + id }
func (s *RedisStore) pendingKey() string        { return s.prefix + "pending" }
func (s *RedisStore) leasedKey() string         { return s.prefix + "leased" }
func (s *RedisStore) seqKey() string            { return s.prefix + "seq" }

func (s *RedisStore) Enqueue(ctx context.Context, sub *Submission) (string, error) {
	if sub == nil || sub.UUID == "" {
		return "", apperrors.ErrRejectedEnqueue.WithMessage("submission uuid is required")
	}

	payload, err := encodePayload(sub.Payload)
	if err != nil {
		return "", apperrors.ErrRejectedEnqueue.WithCause(err)
	}

	keys := []string{s.itemKey(sub.UUID), s.pendingKey(), s.leasedKey(), s.seqKey()}
	err = upsertScript.Run(ctx, s.client, keys,
		sub.UUID, sub.Bundle, sub.ProviderID, payload, sub.ContentHash, s.now().Unix()).Err()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue submission %s: %w", sub.UUID, err)
	}

	return sub.UUID, nil
}

func (s *RedisStore) Claim(ctx context.Context, bundles ...string) (*Submission, error) {
	now := s.now()
	args := []interface{}{now.Unix(), now.Add(s.lease).Unix(), s.itemPrefix()}
	for _, b := range bundles {
		args = append(args, b)
	}

	res, err := claimScript.Run(ctx, s.client, []string{s.pendingKey(), s.leasedKey()}, args...).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}

	fields := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		k, _ := res[i].(string)
		v, _ := res[i+1].(string)
		fields[k] = v
	}

	return parseSubmission(fields)
}

func (s *RedisStore) Delete(ctx context.Context, sub *Submission) error {
	if sub == nil {
		return nil
	}

	keys := []string{s.itemKey(sub.UUID), s.pendingKey(), s.leasedKey()}
	if err := deleteScript.Run(ctx, s.client, keys, sub.UUID, strconv.FormatInt(sub.Version, 10)).Err(); err != nil {
		return fmt.Errorf("failed to delete submission %s: %w", sub.UUID, err)
	}

	return nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	pipe := s.client.Pipeline()
	pending := pipe.ZCard(ctx, s.pendingKey())
	leased := pipe.ZCard(ctx, s.leasedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return int(pending.Val() + leased.Val()), nil
}

func (s *RedisStore) List(ctx context.Context, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	pending, err := s.client.ZRange(ctx, s.pendingKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	leased, err := s.client.ZRange(ctx, s.leasedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	ids := append(pending, leased...)
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, s.itemKey(id)))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to load queue items: %w", err)
		}
	}

	subs := make([]*Submission, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sub, err := parseSubmission(fields)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].Seq < subs[j].Seq })
	if len(subs) > limit {
		subs = subs[:limit]
	}

	return subs, nil
}

func parseSubmission(fields map[string]string) (*Submission, error) {
	sub := &Submission{
		UUID:        fields["uuid"],
		Bundle:      fields["bundle"],
		ProviderID:  fields["provider_id"],
		ContentHash: fields["content_hash"],
	}

	var err error
	if sub.Payload, err = decodePayload([]byte(fields["payload"])); err != nil {
		return nil, err
	}

	ints := map[string]*int64{"seq": &sub.Seq, "version": &sub.Version}
	for name, dst := range ints {
		if *dst, err = strconv.ParseInt(fields[name], 10, 64); err != nil {
			return nil, fmt.Errorf("invalid %s for submission %s: %w", name, sub.UUID, err)
		}
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for submission %s: %w", sub.UUID, err)
	}
	sub.CreatedAt = time.Unix(createdAt, 0).UTC()

	if v, ok := fields["claimed_at"]; ok && v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			sub.ClaimedAt = unixPtr(ts)
		}
	}
	if v, ok := fields["lease_expires_at"]; ok && v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			sub.LeaseExpiresAt = unixPtr(ts)
		}
	}

	return sub, nil
}
