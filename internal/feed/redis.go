package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisFeed broadcasts over redis pub/sub so multiple api replicas share
// one dashboard stream.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed builds a feed on the given pub/sub channel.
func NewRedisFeed(client *redis.Client, channel string) *RedisFeed {
	if channel == "" {
		channel = "dormwatch:scans"
	}
	return &RedisFeed{client: client, channel: channel}
}

// Publish sends payload to the channel.
func (f *RedisFeed) Publish(ctx context.Context, payload []byte) error {
	return f.client.Publish(ctx, f.channel, payload).Err()
}

// Subscribe opens a dedicated pub/sub connection and forwards messages
// until the subscription is closed or ctx is cancelled.
func (f *RedisFeed) Subscribe(ctx context.Context) (Subscription, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
			}
		}
	}()
	return &redisSub{ps: ps, ch: out}, nil
}

type redisSub struct {
	ps *redis.PubSub
	ch chan []byte
}

func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) Close() { _ = s.ps.Close() }
