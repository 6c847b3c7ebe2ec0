// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects standard headers on every response:
//
//   • Strict-Transport-Security  –  forces HTTPS (2 years)
//   • Content-Security-Policy   –  self plus the Telegram web-app script
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  drops path/query from Referer
//   • Permissions-Policy        –  geolocation for our own origin only
//
// Notes
// -----
// • The mini-app runs inside the Telegram client's webview, which frames
//   the page.  X-Frame-Options is therefore not set and frame-ancestors
//   lists the Telegram web clients.
// • Headers are set before next.ServeHTTP; handlers may override them.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts = "max-age=63072000; includeSubDomains"
		csp  = "default-src 'self'; script-src 'self' https://telegram.org; " +
			"style-src 'self' 'unsafe-inline'; img-src 'self' data:; " +
			"connect-src 'self'; object-src 'none'; base-uri 'self'; " +
			"frame-ancestors 'self' https://web.telegram.org https://*.telegram.org"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
		perm  = "geolocation=(self), microphone=(), camera=()"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", hsts)
		h.Set("Content-Security-Policy", csp)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Referrer-Policy", refer)
		h.Set("Permissions-Policy", perm)
		next.ServeHTTP(w, r)
	})
}
