package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/adityaraj-09/faff-assign/internal/metrics"

	"github.com/redis/go-redis/v9"
)

type envelope struct {
	Room   string          `json:"room"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Except string          `json:"except,omitempty"`
}

// RedisFanout mem-publish event ke channel Redis; setiap proses yang subscribe
// mengantarkannya ke Hub lokal. Membership room tetap lokal per proses.
type RedisFanout struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger

	sub  *redis.PubSub
	done chan struct{}
	once sync.Once
}

func NewRedisFanout(rdb *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisFanout {
	return &RedisFanout{
		rdb:     rdb,
		channel: channel,
		hub:     hub,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start subscribe dan menunggu konfirmasi sebelum return, jadi publish setelahnya tidak hilang.
func (f *RedisFanout) Start(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.sub = sub
	go f.consume(sub.Channel())
	return nil
}

func (f *RedisFanout) consume(ch <-chan *redis.Message) {
	defer close(f.done)
	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			f.logger.Warn("redis fanout: bad envelope", slog.String("error", err.Error()))
			continue
		}
		f.hub.deliver(env.Room, Event{Type: env.Type, Data: env.Data}, env.Except)
	}
}

func (f *RedisFanout) Broadcast(ctx context.Context, room, eventType string, data interface{}) error {
	return f.BroadcastExcept(ctx, room, eventType, data, "")
}

func (f *RedisFanout) BroadcastExcept(ctx context.Context, room, eventType string, data interface{}, exceptClientID string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	payload, err := json.Marshal(envelope{Room: room, Type: eventType, Data: raw, Except: exceptClientID})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := f.rdb.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	metrics.BroadcastEvents.WithLabelValues(eventType).Inc()
	return nil
}

func (f *RedisFanout) Close(ctx context.Context) error {
	var err error
	f.once.Do(func() {
		if f.sub == nil {
			close(f.done)
			return
		}
		err = f.sub.Close()
	})
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
