package redislock

import (
	"testing"
	"time"
)

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error without address")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_LOCK_TTL", "45")
	t.Setenv("REDIS_LOCK_PREFIX", "")
	cfg := ConfigFromEnv()
	if cfg.Addr != "localhost:6379" || cfg.TTL != 45*time.Second || cfg.Prefix != "cardaffinity:lock:" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
