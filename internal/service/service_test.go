package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/club-portal/internal/credential"
	"github.com/pribylovaa/club-portal/internal/limiter"
	"github.com/pribylovaa/club-portal/mocks"
)

// clock — управляемые часы, общие для кодека и теста.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func testCodec(t *testing.T, clk *clock) *credential.Codec {
	t.Helper()
	c, err := credential.New(credential.Config{
		AccessSecret:  "unit-access",
		RefreshSecret: "unit-refresh",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "club-portal",
		Audience:      []string{"portal-web"},
	}, credential.WithClock(clk.Now))
	require.NoError(t, err)
	return c
}

func newSvc(t *testing.T, opts ...Option) (*Service, *mocks.MockStorage, *clock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(st, testCodec(t, clk), opts...), st, clk
}

func newRedisLimiter(t *testing.T, max int) (limiter.Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return limiter.NewRedis(rdb, limiter.Config{MaxAttempts: max, Window: time.Minute, Prefix: "t:"}), mr
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}
