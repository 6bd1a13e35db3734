package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/roomslots/internal/repository/base"
)

func TestRedisLockTTL(t *testing.T) {
	tests := []struct {
		storeTimeout time.Duration
		want         time.Duration
	}{
		{5 * time.Second, minRedisLockTTL},
		{10 * time.Second, minRedisLockTTL},
		{15 * time.Second, 45 * time.Second},
		{time.Minute, 3 * time.Minute},
	}
	for _, tt := range tests {
		ttl := redisLockTTL(tt.storeTimeout)
		assert.Equal(t, tt.want, ttl, tt.storeTimeout.String())
		assert.Greater(t, ttl, base.HoldLimit(tt.storeTimeout))
	}
}
