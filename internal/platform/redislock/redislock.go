// Package redislock is a single-instance Redis lease used to keep graph-wide
// passes from overlapping across processes.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/cardaffinity/internal/platform/envutil"
	"github.com/yungbote/cardaffinity/internal/platform/logger"
)

var ErrNotHeld = errors.New("redis lock not held")

var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
	extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL is the lease length; a holder renews it every TTL/3.
	TTL time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration
}

// ConfigFromEnv reads REDIS_*. An empty Addr means no distributed lock.
func ConfigFromEnv() Config {
	return Config{
		Addr:          envutil.String("REDIS_ADDR", ""),
		Password:      envutil.String("REDIS_PASSWORD", ""),
		DB:            envutil.Int("REDIS_DB", 0),
		Prefix:        envutil.String("REDIS_LOCK_PREFIX", "cardaffinity:lock:"),
		TTL:           envutil.Duration("REDIS_LOCK_TTL", 30*time.Second),
		RetryInterval: envutil.Duration("REDIS_LOCK_RETRY", 500*time.Millisecond),
	}
}

type Locker struct {
	rdb *goredis.Client
	log *logger.Logger
	cfg Config
}

func New(cfg Config, log *logger.Logger) (*Locker, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Locker{rdb: rdb, log: log.With("service", "RedisLocker"), cfg: cfg}, nil
}

func (l *Locker) Close() error { return l.rdb.Close() }

// TryAcquire takes the lock once without waiting. ok is false when someone
// else holds it.
func (l *Locker) TryAcquire(ctx context.Context, name string) (release func(context.Context) error, ok bool, err error) {
	key := l.cfg.Prefix + name
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, l.cfg.TTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return l.hold(key, token), true, nil
}

// Acquire waits for the lock until ctx ends. The lease is renewed in the
// background until release is called.
func (l *Locker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	for {
		release, ok, err := l.TryAcquire(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			l.log.Debug("lock acquired", "lock", name)
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", name, ctx.Err())
		case <-time.After(l.cfg.RetryInterval):
		}
	}
}

func (l *Locker) hold(key, token string) func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.cfg.TTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL/3)
				n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.cfg.TTL.Milliseconds()).Int()
				cancel()
				if err != nil {
					l.log.Warn("lock renewal failed", "key", key, "error", err)
					continue
				}
				if n == 0 {
					l.log.Warn("lock lost before release", "key", key)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			var n int
			n, err = releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
			if err == nil && n == 0 {
				err = ErrNotHeld
			}
		})
		return err
	}
}
