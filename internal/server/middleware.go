package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// loggingMiddleware logs HTTP requests and responses
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.logger.WithRequestID(requestID).Info("HTTP request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(rw, r)

		s.logger.WithRequestID(requestID).Info("HTTP request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_size", rw.size),
		)
	})
}

// rateLimitMiddleware applies a per-client token bucket. Limiters are kept
// per remote IP and pruned when idle.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	limiters := &clientLimiters{
		limiters: make(map[string]*clientLimiter),
		rpm:      s.config.Server.RateLimit.RequestsPerMin,
		burst:    s.config.Server.RateLimit.Burst,
	}
	go limiters.cleanup()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiters.get(ip).Allow() {
			s.logger.Warn("Rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", r.URL.Path))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rpm      int
	burst    int
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.limiters[ip]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(c.rpm)/60.0), c.burst),
		}
		c.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (c *clientLimiters) cleanup() {
	for range time.Tick(time.Minute) {
		c.mu.Lock()
		for ip, entry := range c.limiters {
			if time.Since(entry.lastSeen) > 3*time.Minute {
				delete(c.limiters, ip)
			}
		}
		c.mu.Unlock()
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// requestIDFrom extracts the request ID from context
func requestIDFrom(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
