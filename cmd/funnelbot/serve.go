package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/geofunnel/internal/acl"
	"github.com/yanizio/geofunnel/internal/admin"
	"github.com/yanizio/geofunnel/internal/broadcast"
	"github.com/yanizio/geofunnel/internal/funnel"
	"github.com/yanizio/geofunnel/internal/links"
	"github.com/yanizio/geofunnel/internal/logger"
	"github.com/yanizio/geofunnel/internal/router"
	"github.com/yanizio/geofunnel/internal/scenario"
	"github.com/yanizio/geofunnel/internal/server"
	"github.com/yanizio/geofunnel/internal/session"
	"github.com/yanizio/geofunnel/internal/telegram"
	"github.com/yanizio/geofunnel/internal/webapp"
)

const (
	evictInterval   = time.Minute
	shutdownTimeout = 20 * time.Second
)

var skipWebhook bool

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Long: `Run the webhook server.

Startup order: config → logger → vault → database → migrate → webhook.
On SIGINT or SIGTERM the webhook is deleted and the server stops accepting
requests.  In-flight updates and running broadcasts then get up to 20s to
finish before they are cancelled; recipients a cancelled broadcast did not
reach are reported as failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipWebhook, "skip-webhook", false, "do not register or delete the Telegram webhook")
	return cmd
}

func runServe(ctx context.Context) error {
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	//
	// ── 1.  File logger ─────────────────────────────────────────────────
	//
	log, err := logger.New(cfg.Paths.Root, cfg.Log.Level, runningInTTY())
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer log.Sync()
	zl := log.Desugar()

	//
	// ── 2.  Schema and seeds ────────────────────────────────────────────
	//
	if err := e.store.Migrate(ctx, cfg.Destinations); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//
	// ── 3.  Domain services ─────────────────────────────────────────────
	//
	catalog, err := scenario.NewCatalog(cfg.Funnel.Scenarios)
	if err != nil {
		return err
	}
	locator, closeGeo, err := buildLocator(cfg.Geo)
	if err != nil {
		return err
	}
	defer closeGeo()

	tg, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.RequestTimeout, zl)
	if err != nil {
		return err
	}

	linkSvc := links.New(e.store)
	funnelSessions := session.New[funnel.Session]("funnel", cfg.Funnel.SessionIdleTTL)
	adminFlows := session.New[admin.Pending]("admin", cfg.Funnel.SessionIdleTTL)

	eng := funnel.New(funnel.Deps{
		Users:     e.store,
		Links:     linkSvc,
		Locator:   locator,
		Catalog:   catalog,
		Sessions:  funnelSessions,
		Out:       tg,
		Banned:    cfg.Funnel.BannedRegions,
		WebAppURL: cfg.HTTP.PublicURL + server.WebAppPrefix,
		Log:       zl,
	})

	// Handlers and broadcasts outlive the signal; drain cancels them.
	work, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()

	adm := admin.New(admin.Deps{
		ACL:         acl.New(cfg.Admin.IDs),
		Repo:        e.store,
		Links:       linkSvc,
		Broadcaster: broadcast.New(tg, e.store, cfg.Broadcast.Delay, zl),
		Flows:       adminFlows,
		Out:         tg,
		Lifetime:    work,
		Log:         zl,
	})
	hook := telegram.NewWebhook(work, cfg.Telegram.WebhookSecret, router.New(eng, adm, tg, zl), zl)

	//
	// ── 4.  HTTP surface ────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, server.Routes{
		WebhookPath: cfg.Telegram.WebhookPath,
		Webhook:     hook,
		WebApp:      webapp.Handler(server.WebAppPrefix),
		ForceHTTPS:  cfg.HTTP.ForceHTTPS,
	}.Handler())

	//
	// ── 5.  Run until signalled ─────────────────────────────────────────
	//
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr, "public_url", cfg.HTTP.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { funnelSessions.Run(gctx, evictInterval, zl); return nil })
	g.Go(func() error { adminFlows.Run(gctx, evictInterval, zl); return nil })

	if !skipWebhook {
		g.Go(func() error {
			url := cfg.HTTP.PublicURL + cfg.Telegram.WebhookPath
			return tg.SetWebhook(gctx, url, cfg.Telegram.WebhookSecret)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down")

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if !skipWebhook {
			if err := tg.DeleteWebhook(shCtx); err != nil {
				log.Warnw("delete webhook", "err", err)
			}
		}
		if err := srv.Shutdown(shCtx); err != nil {
			log.Warnw("http shutdown", "err", err)
		}
		if !drain(shCtx, stopWork, hook.Wait, adm.Wait) {
			log.Warnw("drain timed out, in-flight work cancelled")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zl.Error("serve stopped", zap.Error(err))
		return err
	}
	log.Infow("bye")
	return nil
}

// drain runs waits in order and reports whether they finished before ctx
// expired.  On expiry stop is called and drain still blocks until the waits
// return, so nothing outlives the caller.
func drain(ctx context.Context, stop func(), waits ...func()) bool {
	done := make(chan struct{})
	go func() {
		for _, w := range waits {
			w()
		}
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		stop()
		<-done
		return false
	}
}
