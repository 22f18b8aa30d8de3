package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lalith-99/mehfil/internal/repository"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "mehfil:identity-event:"

// Ledger dedupes identity events with SET NX. The key expires on its own, so
// the ledger only has to outlive the provider's redelivery window.
type Ledger struct {
	client goredis.Cmdable
}

var _ repository.EventLedger = (*Ledger)(nil)

func NewLedger(client goredis.Cmdable) *Ledger {
	return &Ledger{client: client}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *Ledger) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+eventID, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (l *Ledger) Release(ctx context.Context, eventID string) error {
	if err := l.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// NopLedger claims everything. Used when no Redis is configured; the
// effects are idempotent, so replays cost work but not correctness.
type NopLedger struct{}

func (NopLedger) Claim(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NopLedger) Release(context.Context, string) error                      { return nil }
