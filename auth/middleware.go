package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"deliveryman-auth/auth/application"
	"deliveryman-auth/auth/domain"
	"deliveryman-auth/auth/infra"
)

type KeyFunc func(r *http.Request) string

type RateLimitOptions struct {
	Store               domain.LimiterStore
	Stats               domain.LoginStats
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// RateLimit limita tentativas de login por cliente. Tentativas bloqueadas
// recebem 429 com Retry-After e são contadas como "throttled".
func RateLimit(opts RateLimitOptions) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	throttle := application.Throttle{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := throttle.Decide(domain.ClientKey(key))
			if !dec.Allowed {
				recordAttempt(r.Context(), opts.Stats, key, domain.LoginThrottled)
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Muitas tentativas de login")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
}

// Concurrency limita quantos logins aguardam o cadastro ao mesmo tempo.
// Sem vaga dentro do AcquireTimeout a resposta é 503.
func Concurrency(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	admission := application.Admission{
		Pool:           infra.NewSlotPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := admission.Acquire(r.Context())
			if !ok {
				writeError(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

const (
	corsMethods = "GET,HEAD,PUT,PATCH,POST,DELETE,OPTIONS"
	corsHeaders = "Content-Type,Accept,Authorization,X-Requested-With"
)

// CORS libera qualquer origem, sem credenciais. Preflight (OPTIONS) responde 204.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recordAttempt(ctx context.Context, stats domain.LoginStats, key string, outcome domain.LoginOutcome) {
	if stats == nil {
		return
	}
	_ = stats.Record(ctx, domain.LoginAttempt{
		Key:     domain.ClientKey(key),
		Outcome: outcome,
		At:      time.Now(),
	})
}
