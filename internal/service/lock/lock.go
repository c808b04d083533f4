// Package lock serializes turns of one session across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"BotFlow/internal/config"
	"BotFlow/internal/lib/sl"
)

const (
	keyPrefix  = "botflow:session-lock:"
	defaultTTL = 5 * time.Minute
)

var ErrLocked = errors.New("session is locked by another turn")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

type Locker struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisClient connects and pings; nil is returned when redis is disabled.
func NewRedisClient(conf *config.Config) (*redis.Client, error) {
	if !conf.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewLocker(client *redis.Client, ttl time.Duration, log *slog.Logger) *Locker {
	if ttl < 3*time.Millisecond {
		ttl = defaultTTL
	}
	return &Locker{
		client: client,
		ttl:    ttl,
		log:    log.With(sl.Module("session lock")),
	}
}

// Acquire takes the session lock without waiting. The lease is renewed every
// third of its ttl until the returned release function is called, so a turn
// keeps the lock however long it runs. Release is safe to call after the
// lock was lost and more than once.
func (l *Locker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := keyPrefix + sessionID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrLocked)
	}

	log := l.log.With(slog.String("session_id", sessionID))
	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.heartbeat(key, token, stop, log)
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-stopped
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				log.With(sl.Err(err)).Warn("release lock")
			}
		})
	}
	return release, nil
}

// heartbeat renews the lease until stop is closed or the token is gone.
func (l *Locker) heartbeat(key, token string, stop <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			log.With(sl.Err(err)).Warn("renew lock")
		case renewed == 0:
			log.Error("session lock lost while the turn was running")
			return
		}
	}
}
