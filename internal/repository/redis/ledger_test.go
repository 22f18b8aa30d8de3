package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// stubRedis implements only the two commands the ledger sends.
type stubRedis struct {
	goredis.Cmdable
	keys   map[string]time.Duration
	setErr error
}

func (s *stubRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *goredis.BoolCmd {
	if s.setErr != nil {
		return goredis.NewBoolResult(false, s.setErr)
	}
	if _, ok := s.keys[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	s.keys[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (s *stubRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := s.keys[k]; ok {
			delete(s.keys, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestLedger_ClaimOnce(t *testing.T) {
	req := require.New(t)
	stub := &stubRedis{keys: map[string]time.Duration{}}
	ledger := NewLedger(stub)
	ctx := context.Background()

	first, err := ledger.Claim(ctx, "msg_1", time.Hour)
	req.NoError(err)
	req.True(first)

	second, err := ledger.Claim(ctx, "msg_1", time.Hour)
	req.NoError(err)
	req.False(second)

	req.Equal(time.Hour, stub.keys[keyPrefix+"msg_1"])
}

func TestLedger_ReleaseAllowsReclaim(t *testing.T) {
	req := require.New(t)
	ledger := NewLedger(&stubRedis{keys: map[string]time.Duration{}})
	ctx := context.Background()

	_, err := ledger.Claim(ctx, "msg_2", time.Hour)
	req.NoError(err)
	req.NoError(ledger.Release(ctx, "msg_2"))

	again, err := ledger.Claim(ctx, "msg_2", time.Hour)
	req.NoError(err)
	req.True(again)
}

func TestLedger_ClaimError(t *testing.T) {
	ledger := NewLedger(&stubRedis{keys: map[string]time.Duration{}, setErr: errors.New("READONLY")})

	_, err := ledger.Claim(context.Background(), "msg_3", time.Hour)

	require.ErrorContains(t, err, "READONLY")
}

func TestNopLedger(t *testing.T) {
	ok, err := NopLedger{}.Claim(context.Background(), "anything", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, NopLedger{}.Release(context.Background(), "anything"))
}
