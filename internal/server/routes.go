// internal/server/routes.go
//
// Route table.
//
//   POST <webhook path>  – Telegram updates
//   GET  /web_app/...    – verification mini-app
//   GET  /metrics        – Prometheus
//   GET  /healthz        – liveness
//
// The chain is RequestID → RealIP → Recoverer → Security → ForceHTTPS.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/middleware"
)

// WebAppPrefix is where the mini-app is mounted.
const WebAppPrefix = "/web_app/"

// Routes wires the HTTP surface.
type Routes struct {
	WebhookPath string
	Webhook     http.Handler
	WebApp      http.Handler
	ForceHTTPS  bool
}

// Handler builds the chi router.
func (rt Routes) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(accessLog)
	r.Use(middleware.Security)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if rt.Webhook != nil {
		r.Post(rt.WebhookPath, rt.Webhook.ServeHTTP)
	}
	if rt.WebApp != nil {
		r.Get("/web_app", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, WebAppPrefix, http.StatusMovedPermanently)
		})
		r.Handle(WebAppPrefix+"*", rt.WebApp)
	}

	return middleware.ForceHTTPS(rt.ForceHTTPS, r)
}

// accessLog writes one DEBUG line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}
