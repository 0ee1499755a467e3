package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisFeed relays messages published on Channel. The writer side (or
// the import tool) publishes after every change.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func NewRedisFeedURL(url string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisFeed(redis.NewClient(opts)), nil
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	ps := f.client.Subscribe(ctx, Channel)
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	msgs := ps.Channel()
	ch := make(chan Event, 1)
	go func() {
		defer close(ch)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				send(ch, Event{Source: "redis", At: time.Now()})
			}
		}
	}()
	return ch, nil
}

func (f *RedisFeed) Publish(ctx context.Context) error {
	return f.client.Publish(ctx, Channel, time.Now().UTC().Format(time.RFC3339)).Err()
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}
