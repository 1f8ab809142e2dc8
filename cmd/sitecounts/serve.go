package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dfryer1193/sitecounts/internal/config"
	"github.com/dfryer1193/sitecounts/internal/contentwatch"
	"github.com/dfryer1193/sitecounts/internal/middleware"
	"github.com/dfryer1193/sitecounts/internal/observability"
	"github.com/dfryer1193/sitecounts/internal/rest"
	webhook "github.com/dfryer1193/sitecounts/webhook/http"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serverPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP server",
	Long: `serve imports content.dir when it is set, then serves posts and blocks
over HTTP. With content.watch the directory is re-imported whenever it
changes; with webhook.secret a signed push webhook re-imports it too.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing, version)
	if err != nil {
		log.Warn().Err(err).Msg("Continuing without tracing")
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down tracer")
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Content.Dir != "" {
		if _, err := a.importer.ImportDir(ctx, os.DirFS(cfg.Content.Dir)); err != nil {
			return fmt.Errorf("initial import failed: %w", err)
		}
	}

	router, err := newRouter(cfg, a)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	if cfg.Content.Watch && cfg.Content.Dir != "" {
		g.Go(func() error {
			return contentwatch.New(cfg.Content.Dir, a.importer, contentwatch.DefaultDebounce).Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

func newRouter(cfg *config.Config, a *app) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	router.Use(middleware.Tracing())

	rest.NewApi(router, rest.Handlers{
		Posts:  rest.NewPostHandler(a.posts, a.registry, a.translator.Language().String()),
		Blocks: rest.NewBlockHandler(a.registry, a.posts),
		Health: rest.NewHealthHandler(a.database.DB()),
	})

	if cfg.Webhook.Secret != "" {
		if cfg.Content.Dir == "" {
			return nil, errors.New("webhook.secret is set but content.dir is not")
		}
		h, err := webhook.NewWebhookHandler(cfg.Webhook.Secret, a.importer, os.DirFS(cfg.Content.Dir), cfg.Webhook.Branch)
		if err != nil {
			return nil, err
		}
		h.RegisterRoutes(router)
	}

	return router, nil
}
