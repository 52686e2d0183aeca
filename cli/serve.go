package cli

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bienestar/auth"
	"bienestar/config"
	"bienestar/handlers"
	"bienestar/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the JSON API on the configured address. The server stops
gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

var ephemeral bool

func init() {
	serveCmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep records in memory only")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.AppConfig
	if ephemeral {
		cfg.Backend = config.BackendMemory
	}
	rt, err := openRuntime(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	app := handlers.NewApp(cfg.AppName, rt.Store, rt.Catalog, newCoach(ctx, cfg, appLog), appLog)
	csrfKey := sha256.Sum256([]byte(cfg.SessionKey + "csrf"))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler(csrfKey[:], cfg.SecureCookies),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("server starting", "addr", srv.Addr, "app", cfg.AppName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeTokens(gctx, purgeInterval, appLog)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// purgeTokens drops expired API tokens every interval until ctx ends.
func purgeTokens(ctx context.Context, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := auth.PurgeExpiredTokens(); err != nil {
			log.Warn("purging expired tokens", "error", err)
		} else if n > 0 {
			log.Debug("expired tokens purged", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
