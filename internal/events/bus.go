package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel all relay instances share.
const DefaultChannel = "sms-relay:changes"

// Publisher is implemented by RedisBus. Publishing is best-effort.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// RedisBus fans changes out across API instances through Redis pub/sub.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe streams changes until ctx is done. The returned channel is
// closed when the subscription ends.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := b.rdb.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					b.log.Warn("dropping malformed change", "err", err)
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
