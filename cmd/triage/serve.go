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

	httpAdapter "github.com/aretw0/triage/pkg/adapters/http"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves workflows, validation, editing and guided sessions as a JSON API, with
server-sent events per session and Prometheus metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backends()
			if err != nil {
				return err
			}
			defer b.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := observability.New(reg)
			mgr := b.Manager(a.logger, session.WithLifecycleHooks(metrics.Hooks()))

			srv := &http.Server{
				Addr: a.cfg.Addr,
				Handler: httpAdapter.NewHandler(mgr, b.Documents,
					httpAdapter.WithLogger(a.logger),
					httpAdapter.WithMetrics(metrics, reg),
				),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP server listening", "address", srv.Addr, "store", a.cfg.Store)
				serverErrors <- srv.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case sig := <-shutdown:
				a.logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown did not complete: %w", err)
				}
				return nil
			}
		},
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on")
	return cmd
}
