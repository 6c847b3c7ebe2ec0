// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler wraps the mini-app routes.  For every request it:

  1. Extracts the left-most client IP from X-Forwarded-For or X-Real-IP,
     falling back to r.RemoteAddr.
  2. Parses the User-Agent header and Accept-Language list.
  3. Stores a *RequestInfo in the request context so the page handler can
     embed the address into the verification payload.

Each invocation logs a DEBUG line with the client IP, browser, device,
bot flag, and path.

Notes
-----
  • X-Forwarded-For is trusted as-is.  Run behind a proxy that overwrites
    it, or the ip field of the payload is client-controlled.
*/
package requestinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Enrich wraps an http.Handler, attaches *RequestInfo, and forwards.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &RequestInfo{
			IP:        ClientIP(r),
			UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
			Timestamp: time.Now().UTC(),
		}

		zap.L().Debug("request info",
			zap.Stringer("ip", info.IP),
			zap.String("browser", info.UA.Browser),
			zap.String("os", info.UA.OS),
			zap.String("device", info.UA.Device),
			zap.Bool("bot", info.UA.IsBot),
			zap.String("lang", info.UA.PrimaryLang),
			zap.String("path", r.URL.Path),
		)

		ctx := context.WithValue(r.Context(), ctxKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP extracts the left-most parseable address from X-Forwarded-For or
// X-Real-IP, falling back to r.RemoteAddr ("ip:port").
func ClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(r.RemoteAddr)
}
