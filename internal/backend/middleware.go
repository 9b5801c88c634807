package backend

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/org/stockdesk/internal/auth"
	"github.com/org/stockdesk/internal/policy"
	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

// AuthHeader mirrors the bearer token for clients that cannot set
// Authorization.
const AuthHeader = "X-Auth-Token"

// requestIDMiddleware attaches a UUID request ID to each request.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

// bearerToken reads the token from Authorization or the mirror header.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return r.Header.Get(AuthHeader)
}

// authMiddleware resolves the caller. A missing token is 401, an invalid,
// expired or revoked one is 403.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plaintext := bearerToken(r)
		if plaintext == "" {
			writeFail(w, http.StatusUnauthorized, errUnauthorized, "missing access token")
			return
		}
		token, err := s.tokens.Validate(r.Context(), plaintext)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenRevoked) {
				writeFail(w, http.StatusForbidden, errForbidden, err.Error())
				return
			}
			writeErr(w, r, err)
			return
		}
		user, err := s.store.GetUserByID(r.Context(), token.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeFail(w, http.StatusForbidden, errForbidden, "account no longer exists")
				return
			}
			writeErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// authorize checks the caller's role policy against the request path.
// Denials answer 404 so that 401 and 403 only ever mean a bad credential.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromCtx(r.Context())
		if user == nil || !s.policy.IsAllowed(r.Context(), []string{string(user.Role)}, policy.CapabilityFor(r.Method), r.URL.Path) {
			writeFail(w, http.StatusNotFound, errPermissionDenied, "permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// auditMiddleware records mutations made by admins.
func auditMiddleware(auditor AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rr, r)

			if !isAdmin(r.Context()) || r.Method == http.MethodGet {
				return
			}
			user := userFromCtx(r.Context())
			auditor.LogRequest(r.Context(), &models.AuditEntry{
				RequestID:      requestIDFromCtx(r.Context()),
				UserID:         user.ID,
				Operation:      r.Method,
				Path:           r.URL.Path,
				ResponseCode:   rr.statusCode,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				ClientIP:       clientIP(r),
			})
		})
	}
}

// rateLimiter is a simple per-IP token bucket rate limiter.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int // requests per second
	burst   int
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

func newRateLimiter(rps, burst int) *rateLimiter {
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rps,
		burst:   burst,
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastCheck: now}
		rl.buckets[ip] = b
	}
	b.tokens += now.Sub(b.lastCheck).Seconds() * float64(rl.rate)
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastCheck = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			log.Warn().Str("ip", ip).Msg("rate limit exceeded")
			writeFail(w, http.StatusTooManyRequests, errRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
