// Package redis provides a core.FastStore backed by Redis lists.
//
// Each session is one list under KeyPrefix+sessionID holding JSON encoded
// messages. Pushes are trimmed to MaxMessages and refresh the key TTL in the
// same MULTI/EXEC transaction, so a session never grows without bound.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentrelay/core"
)

// Compile-time assertion.
var _ core.FastStore = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// KeyPrefix is prepended to every session ID.
	KeyPrefix string
	// MaxMessages caps each session list. Zero disables trimming.
	MaxMessages int
	// TTL expires idle sessions. Zero disables expiry.
	TTL time.Duration
}

// Store implements core.FastStore on top of a go-redis client.
type Store struct {
	client goredis.UniversalClient
	opts   Options
	owned  bool
}

// NewStore dials a Redis server at addr.
func NewStore(addr, password string, db int, optFns ...func(o *Options)) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	s := NewStoreFromClient(client, optFns...)
	s.owned = true
	return s
}

// NewStoreFromClient wraps an existing client. Close does not close a client
// that was passed in.
func NewStoreFromClient(client goredis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{
		KeyPrefix:   "agentrelay:session:",
		MaxMessages: 100,
		TTL:         24 * time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Push appends msg to the session list, trims it and refreshes its TTL.
func (s *Store) Push(ctx context.Context, sessionID string, msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}
	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if s.opts.MaxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-s.opts.MaxMessages), -1)
		}
		if s.opts.TTL > 0 {
			pipe.Expire(ctx, key, s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: push %s: %w", key, err)
	}
	return nil
}

// Range returns the last count messages (all when count <= 0), oldest first.
func (s *Store) Range(ctx context.Context, sessionID string, count int) ([]core.Message, error) {
	start := int64(0)
	if count > 0 {
		start = int64(-count)
	}
	key := s.key(sessionID)
	raw, err := s.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: range %s: %w", key, err)
	}
	msgs := make([]core.Message, 0, len(raw))
	for _, item := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("redis: decode message in %s: %w", key, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Delete removes the session list.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", s.key(sessionID), err)
	}
	return nil
}

// Len reports the list length.
func (s *Store) Len(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: len %s: %w", s.key(sessionID), err)
	}
	return int(n), nil
}

func (s *Store) key(sessionID string) string { return s.opts.KeyPrefix + sessionID }
