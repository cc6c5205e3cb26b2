// Package security provides per-client request throttling for the HTTP
// surface.
package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/config"
)

// RateLimiter applies a token bucket per client IP. Redaction requests are
// expensive, so abusive clients are cut off before the pipeline runs.
type RateLimiter struct {
	config  *config.SecurityConfig
	clients map[string]*clientLimiter
	mu      sync.RWMutex

	stop chan struct{}
	once sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.SecurityConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.RateLimit.Enabled {
		return true
	}
	return r.getClient(clientIP).Allow()
}

// getClient gets or creates the limiter for a client IP
func (r *RateLimiter) getClient(clientIP string) *rate.Limiter {
	r.mu.RLock()
	c, exists := r.clients[clientIP]
	r.mu.RUnlock()

	if exists {
		r.mu.Lock()
		c.lastSeen = time.Now()
		r.mu.Unlock()
		return c.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if c, exists := r.clients[clientIP]; exists {
		c.lastSeen = time.Now()
		return c.limiter
	}

	perSecond := rate.Limit(float64(r.config.RateLimit.RequestsPerMinute) / 60.0)
	burst := r.config.RateLimit.Burst
	if burst < 1 {
		burst = 1
	}
	c = &clientLimiter{
		limiter:  rate.NewLimiter(perSecond, burst),
		lastSeen: time.Now(),
	}
	r.clients[clientIP] = c
	return c.limiter
}

// CleanupStale removes limiters for clients idle longer than maxIdle to
// prevent unbounded growth.
func (r *RateLimiter) CleanupStale(maxIdle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for ip, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
		}
	}
}

// StartCleanupRoutine starts a background routine to clean up idle clients
func (r *RateLimiter) StartCleanupRoutine() {
	interval := r.config.RateLimit.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.CleanupStale(time.Hour)
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop terminates the cleanup routine.
func (r *RateLimiter) Stop() {
	r.once.Do(func() { close(r.stop) })
}
