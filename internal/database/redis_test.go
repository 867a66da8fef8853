package database

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HuskyDanny/FinancialAgent-sub001/internal/config"
	"github.com/HuskyDanny/FinancialAgent-sub001/internal/logging"
)

func redisTestConfig(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestNewRedisConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisConnection(redisTestConfig(t, mr), logging.NewNop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestNewRedisConnectionRefused(t *testing.T) {
	_, err := NewRedisConnection(config.RedisConfig{Host: "127.0.0.1", Port: 1}, logging.NewNop())
	assert.Error(t, err)
}

func TestHealthCheckReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisConnection(redisTestConfig(t, mr), logging.NewNop())
	require.NoError(t, err)
	defer client.Close()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	assert.Error(t, client.HealthCheck(context.Background()))
}
