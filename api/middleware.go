package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/banachtech/oascurve/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	authorizationHeaderKey  = "authorization"
	authorizationTypeBearer = "bearer"
	authorizationPrefixKey  = "prefix"
	apiKeyPrefixLength      = 8
)

// authentication checks a bearer API key of the form <8-char prefix>.<secret>
// against the bcrypt hash configured for its prefix.
func (server *Server) authentication(c *gin.Context) {
	authorizationHeader := c.GetHeader(authorizationHeaderKey)

	if len(authorizationHeader) == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("authorization header is not provided")))
		return
	}

	fields := strings.Fields(authorizationHeader)
	if len(fields) < 2 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("invalid authorization header format")))
		return
	}

	authorizationType := strings.ToLower(fields[0])
	if authorizationType != authorizationTypeBearer {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(fmt.Errorf("unsupported authorization type: %s", authorizationType)))
		return
	}

	apiKey := fields[1]

	prefix := strings.Split(apiKey, ".")[0]
	if len(prefix) != apiKeyPrefixLength {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("please input a valid API Key")))
		return
	}

	hash, ok := server.cfg.Auth.Keys[prefix]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("please input a valid API Key")))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("please input a valid API Key")))
		return
	}

	c.Set(authorizationPrefixKey, prefix)
	c.Next()
}

// rateLimit applies a token bucket per API key prefix, or per client IP when
// authentication is off.
func (server *Server) rateLimit(c *gin.Context) {
	id := c.ClientIP()
	if prefix, ok := c.Get(authorizationPrefixKey); ok {
		id = prefix.(string)
	}

	if !server.limiter(id).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"status": http.StatusTooManyRequests, "msg": "Too Many Requests"})
		return
	}
	c.Next()
}

// limiter returns the bucket for id. Reading a bucket extends its lifetime,
// so only idle clients are evicted.
func (server *Server) limiter(id string) *rate.Limiter {
	server.mu.Lock()
	defer server.mu.Unlock()

	if v, ok := server.limiters.Get(id); ok {
		limiter := v.(*rate.Limiter)
		server.limiters.SetDefault(id, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(server.cfg.Rate.PerSecond), server.cfg.Rate.Burst)
	server.limiters.SetDefault(id, limiter)
	return limiter
}

func limiterIdle(cfg config.RateConfig) time.Duration {
	if cfg.Idle > 0 {
		return cfg.Idle
	}
	return 10 * time.Minute
}
