// Package redis mirrors recorder traffic onto a Redis Stream so external
// consumers (dashboards, analytics) can tail controller activity without
// touching the database.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// maxStreamLen caps the stream with approximate trimming; consumers that lag
// further than this lose history, not the controller.
const maxStreamLen = 10_000

// Stream publishes JSON-encoded records onto one Redis Stream key.
type Stream struct {
	client *redis.Client
	key    string
}

// NewStream connects and verifies the server with a ping.
func NewStream(url, key string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client, key: key}, nil
}

// Publish appends one record to the stream. Satisfies store.EventPublisher.
func (s *Stream) Publish(ctx context.Context, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"kind":    kind,
			"payload": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.key, err)
	}
	return nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}
