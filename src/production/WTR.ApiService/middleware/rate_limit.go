package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller. Callers are keyed by
// principal when authenticated, otherwise by client IP.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters *lru.Cache
}

func NewRateLimiter(perSecond float64, burst, maxCallers int) (*RateLimiter, error) {
	cache, err := lru.New(maxCallers)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: cache}, nil
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.limiters.Get(key); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters.Add(key, l)
	return l
}

// Allow reports whether key may make another request now.
func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

// Limit rejects callers over their budget with 429.
func (r *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, err := GetPrincipalFromGinContext(c); err == nil {
			key = "user:" + p.UserID
		}
		if !r.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
