package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/invoicer/backend/internal/infrastructure/auth"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryTokenBlacklist_AddToBlacklist(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.AddToBlacklist(ctx, "jti-1", time.Hour))

	revoked, err := blacklist.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_ExpirationCleanup(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.AddToBlacklist(ctx, "jti-expire", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	revoked, err := blacklist.IsBlacklisted(ctx, "jti-expire")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_IgnoresExpiredTokens(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.AddToBlacklist(ctx, "already-expired", 0))

	revoked, err := blacklist.IsBlacklisted(ctx, "already-expired")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNewTokenBlacklist(t *testing.T) {
	t.Run("disabled redis uses memory", func(t *testing.T) {
		bl := auth.NewTokenBlacklist(context.Background(), config.RedisConfig{Enabled: false}, zap.NewNop())
		assert.IsType(t, &auth.InMemoryTokenBlacklist{}, bl)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		bl := auth.NewTokenBlacklist(ctx, config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}, nil)
		assert.IsType(t, &auth.InMemoryTokenBlacklist{}, bl)
	})
}

func TestRedisTokenBlacklist_Interface(t *testing.T) {
	var _ auth.TokenBlacklist = (*auth.RedisTokenBlacklist)(nil)
}
