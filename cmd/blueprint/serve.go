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

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/internal/cli"
	"github.com/aretw0/blueprint/internal/presentation/tui"
	bphttp "github.com/aretw0/blueprint/pkg/adapters/http"
	"github.com/aretw0/blueprint/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured store over HTTP",
	Long: `Exposes the configured gateway as a JSON REST API, runs server-side editing
sessions under /sessions and publishes Prometheus metrics under /metrics.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		addr := a.cfg.Serve.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		sinks := observability.Multi{observability.NewLogSink(a.logger)}
		var reg *prometheus.Registry
		if a.cfg.Serve.Metrics {
			reg = prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			prom, err := observability.NewPrometheusSink(reg)
			if err != nil {
				return err
			}
			sinks = append(sinks, prom)
		}

		mgr := a.backend.SessionManager(a.cfg, a.logger, blueprint.WithTelemetry(sinks))
		gateway := bphttp.NewHandler(a.backend.Gateway, bphttp.WithLogger(a.logger))
		srv := &http.Server{
			Addr:    addr,
			Handler: cli.ServeHandler(gateway, mgr, reg, a.logger),
		}

		out := cmd.OutOrStdout()
		if isTerminal(out) {
			tui.PrintBanner(out, blueprint.Version)
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(out, "Starting Blueprint Server on %s\n", srv.Addr)
			fmt.Fprintf(out, "Store: %s\n", a.cfg.Gateway.Kind)
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
			fmt.Fprintf(out, "\nStart shutdown... Signal: %v\n", sig)

			timeout := a.cfg.Serve.ShutdownTimeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(out, "Graceful shutdown did not complete in %v: %v\n", timeout, err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(out, "Error killing server: %v\n", err)
				}
			}
			if err := mgr.Shutdown(ctx); err != nil {
				a.logger.Warn("sessions closed with errors", "err", err)
			}
			fmt.Fprintln(out, "Blueprint Server stopped gracefully")
			return nil
		}
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides serve.addr)")
}
