package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"snipbin/internal/storage"
)

const defaultPrefix = "snipbin:"

// createScript inserts the paste hash and its expiry index entry only when
// the key is absent.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "content", ARGV[1], "language", ARGV[2], "created_at", ARGV[3])
if ARGV[4] ~= "" then
	redis.call("HSET", KEYS[1], "expires_at", ARGV[4])
	redis.call("ZADD", KEYS[2], ARGV[4], ARGV[5])
end
return 1
`)

// deleteExpiredScript removes the paste when its stored expiry is at or
// before ARGV[1]. A dangling index member is dropped as well.
var deleteExpiredScript = redis.NewScript(`
local exp = redis.call("HGET", KEYS[1], "expires_at")
if not exp then
	redis.call("ZREM", KEYS[2], ARGV[2])
	return 0
end
if tonumber(exp) > tonumber(ARGV[1]) then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`)

// Store implements storage.Store on Redis.
//
// Each paste is a hash under <prefix>paste:<id>. Expiring pastes are also
// members of the sorted set <prefix>expiry scored by expiry in unix
// milliseconds; expiries are truncated to millisecond precision.
type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// Open connects to the Redis server described by url and verifies it answers.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w: %w", storage.ErrUnavailable, err)
	}
	return New(client, opts...), nil
}

// New wraps an existing client. The store takes ownership and closes it.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) pasteKey(id string) string { return s.prefix + "paste:" + id }
func (s *Store) expiryKey() string         { return s.prefix + "expiry" }

// Create stores a new paste atomically.
func (s *Store) Create(ctx context.Context, paste *storage.Paste) error {
	if paste == nil {
		return errors.New("paste is nil")
	}
	paste.CreatedAt = paste.CreatedAt.UTC()
	paste.ExpiresAt = paste.ExpiresAt.UTC().Truncate(time.Millisecond)

	expires := ""
	if paste.HasExpiration() {
		expires = strconv.FormatInt(paste.ExpiresAt.UnixMilli(), 10)
	}
	created, err := createScript.Run(ctx, s.client,
		[]string{s.pasteKey(paste.ID), s.expiryKey()},
		paste.Content,
		paste.Language,
		strconv.FormatInt(paste.CreatedAt.UnixNano(), 10),
		expires,
		paste.ID,
	).Int()
	if err != nil {
		return unavailable("create paste", err)
	}
	if created == 0 {
		return storage.ErrConflict
	}
	return nil
}

// Get loads the paste hash and applies the liveness rule at asOf.
func (s *Store) Get(ctx context.Context, id string, asOf time.Time) (*storage.Paste, error) {
	fields, err := s.client.HGetAll(ctx, s.pasteKey(id)).Result()
	if err != nil {
		return nil, unavailable("get paste", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	paste := &storage.Paste{
		ID:       id,
		Content:  fields["content"],
		Language: fields["language"],
	}
	if v, ok := fields["created_at"]; ok {
		ns, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		paste.CreatedAt = time.Unix(0, ns).UTC()
	}
	if v, ok := fields["expires_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		paste.ExpiresAt = time.UnixMilli(ms).UTC()
	}
	if !paste.LiveAt(asOf) {
		return nil, storage.ErrNotFound
	}
	return paste, nil
}

// ListExpired reads the expiry sorted set up to asOf.
func (s *Store) ListExpired(ctx context.Context, asOf time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(asOf.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, unavailable("list expired", err)
	}
	return ids, nil
}

// DeleteIfExpired removes the paste when it is expired at asOf.
func (s *Store) DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error) {
	deleted, err := deleteExpiredScript.Run(ctx, s.client,
		[]string{s.pasteKey(id), s.expiryKey()},
		strconv.FormatInt(asOf.UnixMilli(), 10),
		id,
	).Int()
	if err != nil {
		return false, unavailable("delete expired", err)
	}
	return deleted == 1, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
}
