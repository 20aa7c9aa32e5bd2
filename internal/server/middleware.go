package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stationops/pims/internal/opcontext"
)

// OperatorRequired resolves the acting operator from the X-Operator and
// X-Operator-Role headers and stores it on the request context. Identity is
// asserted by the station gateway upstream of this process.
func (s *Server) OperatorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader("X-Operator"))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Operator-Role")))
		if name == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		switch role {
		case opcontext.RoleAdmin, opcontext.RoleOperator, opcontext.RoleViewer:
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := opcontext.WithOperator(c.Request.Context(), opcontext.Operator{
			Name: name,
			Role: role,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WriterRequired blocks viewers from mutating endpoints and rate limits
// per operator.
func (s *Server) WriterRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if !opcontext.CanWrite(ctx) {
			AbortWithError(c, ErrForbidden)
			return
		}
		if !s.submitLimiter.Allow(opcontext.AuthorName(ctx)) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// AdminRequired restricts configuration endpoints to admins.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !opcontext.IsPrivileged(c.Request.Context()) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

type rateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) > r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}
