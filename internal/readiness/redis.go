package readiness

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL reaches the compose redis service from the host.
const DefaultRedisURL = "redis://localhost:6379/0"

// redisPinger is implemented by the real go-redis client adapter and by
// test doubles.
type redisPinger interface {
	PingResult(ctx context.Context) (string, error)
	Close() error
}

type goRedisPinger struct {
	client *redis.Client
}

func (r *goRedisPinger) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *goRedisPinger) Close() error {
	return r.client.Close()
}

// RedisProbe sends PING and expects PONG.
type RedisProbe struct {
	URL  string
	dial func(url string) (redisPinger, error)
}

// NewRedisProbe creates a probe for url. No connection is opened until
// Probe is called.
func NewRedisProbe(url string) *RedisProbe {
	if url == "" {
		url = DefaultRedisURL
	}
	return &RedisProbe{URL: url, dial: dialRedis}
}

// Name implements Probe.
func (p *RedisProbe) Name() string { return "redis" }

// Probe implements Probe.
func (p *RedisProbe) Probe(ctx context.Context) error {
	pinger, err := p.dial(p.URL)
	if err != nil {
		return err
	}
	defer pinger.Close() //nolint:errcheck

	val, err := pinger.PingResult(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if val != "PONG" {
		return fmt.Errorf("unexpected PING response: %q", val)
	}
	return nil
}

func dialRedis(url string) (redisPinger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	// One attempt per probe; the Poller does the retrying.
	opts.MaxRetries = -1
	return &goRedisPinger{client: redis.NewClient(opts)}, nil
}
