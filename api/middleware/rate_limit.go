package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/geodirectory-backend/api/responses"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
)

// maxPeekBytes bounds how much of an auth body is buffered to find the email.
const maxPeekBytes = 64 << 10

// FixedWindowStore counts requests per scope in fixed windows.
type FixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps requests per client IP on a public surface. When the counter
// store fails the request is let through.
func RateLimit(name string, window time.Duration, limit int, store FixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || window <= 0 || limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)
			allowed, count, err := store.FixedWindowAllow(ctx, name+":ip:"+ip, int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate_limit.store_unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				blocked(ctx, logg, w, map[string]any{"policy": name, "scope": "ip", "ip": ip, "attempts": count, "limit": limit})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthRateLimitPolicy throttles a credential endpoint per client IP and per
// submitted email. A zero limit disables that scope.
type AuthRateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

// AuthRateLimit enforces an AuthRateLimitPolicy. Unlike RateLimit it fails
// closed: a counter store outage answers 503.
func AuthRateLimit(policy AuthRateLimitPolicy, store FixedWindowStore, logg *logger.Logger) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(policy.Name))
	if name == "" {
		name = "auth"
	}
	return func(next http.Handler) http.Handler {
		if store == nil || !policy.enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			check := func(scope, value string, limit int) bool {
				allowed, count, err := store.FixedWindowAllow(ctx, name+":"+scope+":"+value, int64(limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
					return false
				}
				if !allowed {
					fields := map[string]any{"policy": name, "scope": scope, "attempts": count, "limit": limit}
					if scope == "ip" {
						fields["ip"] = value
					} else {
						fields["email_hash"] = value
					}
					blocked(ctx, logg, w, fields)
					return false
				}
				return true
			}

			if policy.IPLimit > 0 && !check("ip", clientIP(r), policy.IPLimit) {
				return
			}
			if policy.EmailLimit > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				if email != "" && !check("email", hashEmail(email), policy.EmailLimit) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func blocked(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, fields map[string]any) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, fields), "rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// peekEmail reads the email field of a JSON body and restores the body for
// the next handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(head, &body); err != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(body.Email)), nil
}

func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
