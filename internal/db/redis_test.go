package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"inakat/lifecycle-service/internal/db"
)

func TestNewRedisClient_BadURL(t *testing.T) {
	rdb, err := db.NewRedisClient(context.Background(), "memcached://localhost:11211")
	assert.Nil(t, rdb)
	assert.ErrorContains(t, err, "redis.ParseURL")
}

func TestNewRedisClient_PingFailureReportsAddr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rdb, err := db.NewRedisClient(ctx, "redis://127.0.0.1:1/0")
	assert.Nil(t, rdb)
	assert.ErrorContains(t, err, "redis ping 127.0.0.1:1")
}
