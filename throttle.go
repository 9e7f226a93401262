package auth

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

var (
	MaxLoginAttempts = 5
	CoolDownPeriod   = 15 * time.Minute
)

const loginThrottlePrefix = "auth:login:failures:"

// RedisLoginThrottle counts failed logins per email in redis. The counter
// expires CoolDownPeriod after the first failure of a window.
type RedisLoginThrottle struct {
	client      redis.Cmdable
	maxAttempts int
	cooldown    time.Duration
}

var _ LoginThrottle = (*RedisLoginThrottle)(nil)

// NewRedisLoginThrottle returns a throttle, zero values fall back to
// MaxLoginAttempts and CoolDownPeriod
func NewRedisLoginThrottle(client redis.Cmdable, maxAttempts int, cooldown time.Duration) *RedisLoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = MaxLoginAttempts
	}
	if cooldown <= 0 {
		cooldown = CoolDownPeriod
	}
	return &RedisLoginThrottle{
		client:      client,
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

func (t *RedisLoginThrottle) Allowed(ctx context.Context, key string) (bool, error) {
	count, err := t.client.Get(ctx, loginThrottlePrefix+key).Int()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to read login attempts")
	}
	return count < t.maxAttempts, nil
}

func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, key string) error {
	redisKey := loginThrottlePrefix + key
	count, err := t.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to record login attempt")
	}
	if count == 1 {
		if err := t.client.Expire(ctx, redisKey, t.cooldown).Err(); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to set login attempt expiry")
		}
	}
	return nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, loginThrottlePrefix+key).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to reset login attempts")
	}
	return nil
}

type attemptWindow struct {
	count   int
	expires time.Time
}

// DefaultMaxTrackedLogins bounds how many emails MemoryLoginThrottle tracks
const DefaultMaxTrackedLogins = 10000

// MemoryLoginThrottle is the in process counterpart of RedisLoginThrottle.
// Expired windows are swept once per cooldown, and when maxEntries emails
// are tracked the window closest to expiry is dropped.
//
// Allowed and RecordFailure are separate steps, so concurrent logins for
// one email can each pass Allowed before any failure is recorded. The
// overshoot is bounded by the number of in-flight attempts. The same holds
// for RedisLoginThrottle.
type MemoryLoginThrottle struct {
	mu          sync.Mutex
	attempts    map[string]attemptWindow
	maxAttempts int
	maxEntries  int
	cooldown    time.Duration
	nextSweep   time.Time
	now         func() time.Time
}

var _ LoginThrottle = (*MemoryLoginThrottle)(nil)

func NewMemoryLoginThrottle(maxAttempts int, cooldown time.Duration) *MemoryLoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = MaxLoginAttempts
	}
	if cooldown <= 0 {
		cooldown = CoolDownPeriod
	}
	return &MemoryLoginThrottle{
		attempts:    make(map[string]attemptWindow),
		maxAttempts: maxAttempts,
		maxEntries:  DefaultMaxTrackedLogins,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// WithMaxEntries caps the number of tracked emails
func (t *MemoryLoginThrottle) WithMaxEntries(n int) *MemoryLoginThrottle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.maxEntries = n
	}
	return t
}

// WithClock sets the time source
func (t *MemoryLoginThrottle) WithClock(now func() time.Time) *MemoryLoginThrottle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now != nil {
		t.now = now
	}
	return t
}

// Len returns the number of tracked emails
func (t *MemoryLoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

func (t *MemoryLoginThrottle) Allowed(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.window(key)
	return !ok || w.count < t.maxAttempts, nil
}

func (t *MemoryLoginThrottle) RecordFailure(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !now.Before(t.nextSweep) {
		t.sweep(now)
		t.nextSweep = now.Add(t.cooldown)
	}

	w, ok := t.window(key)
	if !ok {
		if len(t.attempts) >= t.maxEntries {
			t.sweep(now)
			t.evictOldest()
		}
		w = attemptWindow{expires: now.Add(t.cooldown)}
	}
	w.count++
	t.attempts[key] = w
	return nil
}

func (t *MemoryLoginThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
	return nil
}

// window must be called with mu held
func (t *MemoryLoginThrottle) window(key string) (attemptWindow, bool) {
	w, ok := t.attempts[key]
	if !ok {
		return w, false
	}
	if !t.now().Before(w.expires) {
		delete(t.attempts, key)
		return attemptWindow{}, false
	}
	return w, true
}

// sweep must be called with mu held
func (t *MemoryLoginThrottle) sweep(now time.Time) {
	for key, w := range t.attempts {
		if !now.Before(w.expires) {
			delete(t.attempts, key)
		}
	}
}

// evictOldest must be called with mu held
func (t *MemoryLoginThrottle) evictOldest() {
	for len(t.attempts) >= t.maxEntries {
		var (
			oldest string
			first  = true
			expiry time.Time
		)
		for key, w := range t.attempts {
			if first || w.expires.Before(expiry) {
				oldest, expiry, first = key, w.expires, false
			}
		}
		delete(t.attempts, oldest)
	}
}
