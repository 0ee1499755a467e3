// Package feed delivers "the leads table changed" notifications. Events
// carry no row data; receivers re-fetch everything.
package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Channel is the name used for LISTEN/NOTIFY and Redis pub/sub.
const Channel = "leads_changes"

// Event is one change notification.
type Event struct {
	Source string
	At     time.Time
}

// Feed hands out subscriptions. A subscription lives until ctx is
// cancelled, after which its channel is closed.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Publisher is implemented by feeds that can announce a change themselves.
type Publisher interface {
	Publish(ctx context.Context) error
}

// Open picks a feed from the URL scheme: postgres:// listens on
// Channel, redis:// subscribes to it, anything else polls every interval.
// An empty url with a zero interval yields a feed that never fires.
func Open(changesURL string, interval time.Duration) (Feed, error) {
	switch {
	case strings.HasPrefix(changesURL, "postgres://"), strings.HasPrefix(changesURL, "postgresql://"):
		return NewPGFeed(changesURL), nil
	case strings.HasPrefix(changesURL, "redis://"), strings.HasPrefix(changesURL, "rediss://"):
		f, err := NewRedisFeedURL(changesURL)
		if err != nil {
			return nil, err
		}
		return f, nil
	case changesURL == "":
		return NewPollFeed(interval), nil
	default:
		return nil, fmt.Errorf("unsupported changes url %q", changesURL)
	}
}

// send delivers ev without blocking. A full buffer already holds a
// pending event, which is enough to trigger the next refresh.
func send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}

// ----------------------
// In-process broker
// ----------------------

// Broker fans Publish calls out to every live subscription.
type Broker struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Event]struct{})}
}

func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *Broker) Publish(ctx context.Context) error {
	ev := Event{Source: "broker", At: time.Now()}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		send(ch, ev)
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// ----------------------
// Polling
// ----------------------

// PollFeed fires on a fixed interval. It stands in for a live channel
// when the backend offers none.
type PollFeed struct {
	interval time.Duration
}

func NewPollFeed(interval time.Duration) *PollFeed {
	return &PollFeed{interval: interval}
}

func (p *PollFeed) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 1)
	if p.interval <= 0 {
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch, nil
	}

	go func() {
		defer close(ch)
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				send(ch, Event{Source: "poll", At: now})
			}
		}
	}()
	return ch, nil
}
