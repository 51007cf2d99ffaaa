package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gestor/internal/transport/http/api"
)

// rateWindow is a fixed-window counter keyed per actor or client IP.
// Coarse, but bounding abusive bursts matters more than precision here.
type rateWindow struct {
	mu      sync.Mutex
	limit   int
	span    time.Duration
	keyOf   func(r *http.Request) string
	buckets map[string]*windowSlot
}

type windowSlot struct {
	hits  int
	reset time.Time
}

func newRateWindow(limit int, span time.Duration, keyOf func(r *http.Request) string) *rateWindow {
	return &rateWindow{limit: limit, span: span, keyOf: keyOf, buckets: map[string]*windowSlot{}}
}

// RateLimit throttles every request by authenticated actor, falling back to
// the client IP for anonymous traffic.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	general := newRateWindow(limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !general.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies tighter budgets to login attempts and to
// the mutations that move money or fiscal state.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	loginByIP := newRateWindow(authLimit, window, clientIPKey)
	loginByEmail := newRateWindow(authLimit, window, loginEmailKey)
	mutationByActor := newRateWindow(mutationLimit, window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !loginByIP.allow(w, r) || !loginByEmail.allow(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !mutationByActor.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rw *rateWindow) allow(w http.ResponseWriter, r *http.Request) bool {
	if rw.limit <= 0 {
		return true
	}
	key := rw.keyOf(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := time.Now()

	rw.mu.Lock()
	slot, ok := rw.buckets[key]
	if !ok || now.After(slot.reset) {
		slot = &windowSlot{reset: now.Add(rw.span)}
		rw.buckets[key] = slot
	}
	slot.hits++
	remaining := rw.limit - slot.hits
	resetIn := int(slot.reset.Sub(now).Seconds())
	rw.mu.Unlock()

	if resetIn < 1 {
		resetIn = 1
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rw.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if remaining < 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resetIn))
		slog.Warn("rate limit exceeded",
			"key", key,
			"method", r.Method,
			"path", r.URL.Path,
			"limit", rw.limit,
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

// loginEmailKey throttles repeated attempts against one account across
// addresses. The body is re-buffered so the handler can still read it.
func loginEmailKey(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return clientIPKey(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return clientIPKey(r)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return clientIPKey(r)
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return clientIPKey(r)
	}
	return "email:" + email
}

func clientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/auth/login":
		return sensitiveScopeAuth
	case strings.HasPrefix(path, "/payroll/periods/") &&
		(strings.HasSuffix(path, "/run") || strings.HasSuffix(path, "/finalize")):
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/fiscal/configs/") &&
		(strings.HasSuffix(path, "/activate") || strings.HasSuffix(path, "/deactivate")):
		return sensitiveScopeActor
	case strings.HasPrefix(path, "/reports/declarations/"):
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
