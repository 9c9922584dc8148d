package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func NewRedisClient(address string, options ...Option) *redis.Client {
	opts := &redis.Options{
		Addr: address,
	}
	for _, option := range options {
		option(opts)
	}
	return redis.NewClient(opts)
}

// RedisFeed publishes changes on a Redis channel so that every process sharing
// the same database file sees each other's writes. Local listeners are notified
// synchronously; remote changes arrive on the subscriber goroutine.
type RedisFeed struct {
	client  *redis.Client
	channel string
	origin  string
	pubsub  *redis.PubSub
	hub     Hub[Change]
	done    chan struct{}
}

var _ Feed = (*RedisFeed)(nil)

func NewRedisFeed(ctx context.Context, client *redis.Client, channel string) (*RedisFeed, error) {
	ps := client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	f := &RedisFeed{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		pubsub:  ps,
		done:    make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (f *RedisFeed) run() {
	defer close(f.done)
	for msg := range f.pubsub.Channel() {
		var c Change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			slog.Warn("Dropping malformed change notification", "channel", f.channel, "error", err)
			continue
		}
		if c.Origin == f.origin {
			continue
		}
		f.hub.Emit(c)
	}
}

func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	c.Origin = f.origin
	f.hub.Emit(c)

	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

func (f *RedisFeed) Listen(fn func(Change)) func() {
	return f.hub.Listen(fn)
}

// Close stops the subscriber goroutine. The client is owned by the caller.
func (f *RedisFeed) Close() error {
	err := f.pubsub.Close()
	<-f.done
	return err
}
