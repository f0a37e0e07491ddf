package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"credgate/internal/autherr"
	"credgate/internal/services"
)

type contextKey int

const principalKey contextKey = iota

// principalFrom returns the authenticated principal stored by requireAuth.
func principalFrom(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok
}

// clientIP takes the first hop of X-Forwarded-For when present, otherwise
// the connection peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireAuth verifies the bearer token and injects the principal into the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			s.writeError(w, r, autherr.E(autherr.Unauthorized, "missing bearer token"))
			return
		}
		p, err := s.svc.PrincipalFromToken(r.Context(), raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// rateGate admits a request only while both the per-IP bucket and, when the
// body carries an email, the per-identifier bucket are under their limits.
// Rejections carry Retry-After and do not consume an attempt.
func (s *Server) rateGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		path := r.URL.Path

		if !s.ipLimit.Allow(path+"|ip|"+clientIP(r), now) {
			s.writeTooManyRequests(w, r)
			return
		}
		if ident := peekIdentifier(r); ident != "" {
			if !s.identLimit.Allow(path+"|id|"+ident, now) {
				s.writeTooManyRequests(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeTooManyRequests(w http.ResponseWriter, r *http.Request) {
	retry := int(s.ipLimit.Window() / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	s.writeError(w, r, autherr.E(autherr.TooManyRequests, "too many requests, slow down"))
}

// peekIdentifier reads the request body looking for an email field, then
// restores the body for the handler. Keying the identifier bucket on the
// normalized email makes the limit follow the targeted account across
// source addresses.
func peekIdentifier(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var probe struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(probe.Email))
}
