package httpmiddleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"classattend/internal/logger"
	"classattend/internal/metrics"
)

// Counter counts hits of a key within a fixed window.
type Counter interface {
	// Incr adds one hit and returns the hit count of the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps window counters in Redis so limits hold across api
// replicas.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter creates a counter whose keys start with prefix.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "classattend:ratelimit:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := r.prefix + key
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryCounter is a single-process Counter.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	hits  int64
}

// NewMemoryCounter creates an empty counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, windows: make(map[string]*window)}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, d time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= d {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.hits++
	return w.hits, nil
}

// FixedWindow allows limit requests per client per window.
type FixedWindow struct {
	name    string
	counter Counter
	limit   int64
	window  time.Duration
}

// NewFixedWindow creates a limiter named name, used as key prefix and metric label.
func NewFixedWindow(name string, counter Counter, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{name: name, counter: counter, limit: int64(limit), window: window}
}

// GinMiddleware enforces the limit per client IP. Counter failures let the
// request through.
func (f *FixedWindow) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hits, err := f.counter.Incr(c.Request.Context(), f.name+":"+c.ClientIP(), f.window)
		if err != nil {
			logger.Default().Warnf("rate limiter %s unavailable: %v", f.name, err)
			c.Next()
			return
		}
		if hits > f.limit {
			metrics.RateLimited.WithLabelValues(f.name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(f.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try again later"})
			return
		}
		c.Next()
	}
}
