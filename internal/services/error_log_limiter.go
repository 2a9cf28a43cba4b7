package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrorLogLimiter suppresses repeated log lines of the same error class within
// a cooldown window. It only reduces log noise; nothing may use it to decide
// whether work was already done.
type ErrorLogLimiter struct {
	redis    *redis.Client
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewErrorLogLimiter shares cooldowns through Redis when rdb is not nil and
// falls back to a process-local map otherwise.
func NewErrorLogLimiter(rdb *redis.Client, cooldown time.Duration) *ErrorLogLimiter {
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &ErrorLogLimiter{
		redis:    rdb,
		cooldown: cooldown,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

// Allow reports whether an error of this class may be logged now.
func (l *ErrorLogLimiter) Allow(ctx context.Context, class string) bool {
	if l.redis != nil {
		ok, err := l.redis.SetNX(ctx, "webhook:errlog:"+class, 1, l.cooldown).Result()
		if err == nil {
			return ok
		}
	}
	return l.allowLocal(class)
}

func (l *ErrorLogLimiter) allowLocal(class string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.seen[class]; ok && now.Sub(last) < l.cooldown {
		return false
	}
	for k, t := range l.seen {
		if now.Sub(t) >= l.cooldown {
			delete(l.seen, k)
		}
	}
	l.seen[class] = now
	return true
}

// Logf logs the message unless the class is cooling down.
func (l *ErrorLogLimiter) Logf(ctx context.Context, class, format string, args ...any) {
	if l == nil || l.Allow(ctx, class) {
		log.Printf("[WEBHOOK] [%s] %s", class, fmt.Sprintf(format, args...))
	}
}
