package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Config configures a Redis connection. URL takes precedence over Addrs.
type Config struct {
	URL          string
	Addrs        []string // one addr for standalone, several for cluster seeds
	MasterName   string   // sentinel only
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) timeouts() (dial, read, write time.Duration) {
	dial, read, write = c.DialTimeout, c.ReadTimeout, c.WriteTimeout
	if dial == 0 {
		dial = defaultDialTimeout
	}
	if read == 0 {
		read = defaultDialTimeout
	}
	if write == 0 {
		write = defaultDialTimeout
	}
	return dial, read, write
}

// Connect opens a client and pings it. The returned client is ready for use.
func Connect(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	var client goredis.UniversalClient
	dial, read, write := cfg.timeouts()

	switch {
	case cfg.URL != "":
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if opts.DialTimeout == 0 {
			opts.DialTimeout = dial
		}
		if opts.ReadTimeout == 0 {
			opts.ReadTimeout = read
		}
		if opts.WriteTimeout == 0 {
			opts.WriteTimeout = write
		}
		client = goredis.NewClient(opts)
	case len(cfg.Addrs) > 0:
		client = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:        cfg.Addrs,
			MasterName:   cfg.MasterName,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  dial,
			ReadTimeout:  read,
			WriteTimeout: write,
		})
	default:
		return nil, fmt.Errorf("redis url or address is required")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Pinger adapts a client to a health check function.
func Pinger(client goredis.UniversalClient) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
