package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 6 * time.Hour

// RedisStore keeps each session's history in a Redis list so several server
// replicas share it.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Connect parses url and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

func key(sessionID string) string { return "kiosk:history:" + sessionID }

func genKey(sessionID string) string { return "kiosk:history:" + sessionID + ":gen" }

func encode(msgs []Message) ([]any, error) {
	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal history message: %w", err)
		}
		vals = append(vals, b)
	}
	return vals, nil
}

func (s *RedisStore) push(ctx context.Context, pipe redis.Pipeliner, sessionID string, vals []any) {
	k := key(sessionID)
	pipe.RPush(ctx, k, vals...)
	pipe.LTrim(ctx, k, -MaxMessages, -1)
	pipe.Expire(ctx, k, s.ttl)
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals, err := encode(msgs)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	s.push(ctx, pipe, sessionID, vals)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return nil
}

// AppendIf watches the generation key so a Reset racing the write aborts
// the transaction.
func (s *RedisStore) AppendIf(ctx context.Context, sessionID string, gen uint64, msgs ...Message) (bool, error) {
	if len(msgs) == 0 {
		return true, nil
	}
	vals, err := encode(msgs)
	if err != nil {
		return false, err
	}
	applied := false
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := parseGen(tx.Get(ctx, genKey(sessionID)), sessionID)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.push(ctx, pipe, sessionID, vals)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}, genKey(sessionID))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return applied, nil
}

func parseGen(cmd *redis.StringCmd, sessionID string) (uint64, error) {
	gen, err := cmd.Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read history generation %s: %w", sessionID, err)
	}
	return gen, nil
}

func (s *RedisStore) Generation(ctx context.Context, sessionID string) (uint64, error) {
	return parseGen(s.rdb.Get(ctx, genKey(sessionID)), sessionID)
}

func (s *RedisStore) List(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.rdb.LRange(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", sessionID, err)
	}
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode history message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(sessionID))
	pipe.Incr(ctx, genKey(sessionID))
	pipe.Expire(ctx, genKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset history %s: %w", sessionID, err)
	}
	return nil
}
