package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/federation"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client IP. Buckets of idle IPs
// expire.
type RateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter
// r is requests per second, b is burst size
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		rate:     r,
		burst:    b,
	}
}

// getLimiter returns the rate limiter for a given IP address
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	if l, ok := rl.limiters.Get(ip); ok {
		rl.limiters.SetDefault(ip, l)
		return l.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	if err := rl.limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// lost a race with another request from the same IP
		if l, ok := rl.limiters.Get(ip); ok {
			return l.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimitMiddleware creates a Gin middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// MaxBytesMiddleware limits the size of request bodies
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "Request body too large",
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// MetricsMiddleware counts requests by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

const (
	viewerKey  = "viewer"
	revokedKey = "viewer-revoked"
)

// ViewerMiddleware turns the bearer token of a request into a session.
// Verified sessions are cached per token for a minute, so a token revoked
// upstream keeps its viewer for at most that long. The entry is dropped
// early once a handler answers 401 or calls revokeViewer.
func ViewerMiddleware(client *api.Client) gin.HandlerFunc {
	sessions := cache.New(time.Minute, 5*time.Minute)

	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Set(viewerKey, federation.Anonymous())
			c.Next()
			return
		}

		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized || c.GetBool(revokedKey) {
				sessions.Delete(token)
			}
		}()

		if s, ok := sessions.Get(token); ok {
			c.Set(viewerKey, s.(*federation.Session))
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		s, err := federation.Login(ctx, client, token)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, api.ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": api.ErrorText(err, "Unauthorized")})
			return
		}
		sessions.SetDefault(token, s)
		c.Set(viewerKey, s)
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// revokeViewer marks the request's token as rejected upstream for handlers
// that degrade instead of answering 401.
func revokeViewer(c *gin.Context) {
	c.Set(revokedKey, true)
}

func viewer(c *gin.Context) *federation.Session {
	if s, ok := c.Get(viewerKey); ok {
		return s.(*federation.Session)
	}
	return federation.Anonymous()
}
