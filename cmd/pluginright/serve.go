package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pluginright/internal/api"
	"pluginright/internal/types"
)

func newServeCmd(opts *setupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve plugin generation over HTTP",
		Long: `serve exposes /health/live, /health/ready, /metrics,
POST /v1/ai/complete and POST /v1/plugins/generate. The /v1 routes require
the X-Api-Key header to match server.api_key (or $SERVER_API_KEY).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.withLLM = true
			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Server.APIKey == "" {
				return types.NewConfigError("server api key not set",
					"Set server.api_key in the config file or export SERVER_API_KEY.", nil)
			}

			handler := api.NewHandler(api.Options{
				Generator:   a.gen,
				Client:      a.llm,
				APIKey:      a.cfg.Server.APIKey,
				Model:       a.cfg.LLM.Model,
				MaxBodySize: a.cfg.Server.MaxBodySize,
				Ready:       func() bool { return a.ready },
			})

			server := &http.Server{
				Handler:      handler.Routes(),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, server, ln, a.cfg.Server.ShutdownTimeout)
		},
	}
}

// runServer serves on ln until ctx is done, then shuts down gracefully,
// waiting at most shutdownTimeout for in-flight generations.
func runServer(ctx context.Context, server *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown forced: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
