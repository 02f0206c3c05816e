package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
)

// DefaultChannel is the pub/sub channel used when none is configured
const DefaultChannel = "penne:ws"

// envelope tags a message with the instance that published it
type envelope struct {
	Origin  string           `json:"origin"`
	Message models.WSMessage `json:"message"`
}

// RedisBus relays websocket broadcasts between instances over redis pub/sub
type RedisBus struct {
	log     logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// NewRedisBus connects to redis at addr and verifies the connection
func NewRedisBus(ctx context.Context, log logger.Logger, addr, channel string) (*RedisBus, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newBus(log, rdb, channel), nil
}

func newBus(log logger.Logger, rdb *goredis.Client, channel string) *RedisBus {
	origin := uuid.NewString()
	return &RedisBus{
		log:     log.With("component", "redis_bus", "origin", origin),
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}
}

// Origin returns this instance's id
func (b *RedisBus) Origin() string {
	return b.origin
}

// Publish implements websocket.Relay
func (b *RedisBus) Publish(ctx context.Context, msg models.WSMessage) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	raw, err := b.encode(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and hands every message published
// by another instance to onMsg until ctx is done
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(models.WSMessage)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				if msg, ok := b.decode([]byte(m.Payload)); ok {
					onMsg(msg)
				}
			}
		}
	}()
	return nil
}

// Close releases the redis connection
func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func (b *RedisBus) encode(msg models.WSMessage) ([]byte, error) {
	return json.Marshal(envelope{Origin: b.origin, Message: msg})
}

// decode drops malformed payloads and our own echoes
func (b *RedisBus) decode(raw []byte) (models.WSMessage, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		b.log.Warn("Bad redis payload", "error", err)
		return models.WSMessage{}, false
	}
	if env.Origin == b.origin || env.Message.Type == "" {
		return models.WSMessage{}, false
	}
	return env.Message, true
}
