package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ggoodman/appfunctions-go/mcp"
	"github.com/ggoodman/appfunctions-go/mcpbridge"
	"github.com/ggoodman/appfunctions-go/stdio"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog as MCP tools over stdio",
		Long: `serve exposes every enabled function in the catalog as an MCP tool on
stdin/stdout. Functions loaded from documents have no implementation, so
calls report function_not_found; the command is meant for inspecting how
agents see a catalog. Embed the library to serve real handlers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, cmd)
		},
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (APPFUNCTIONS_METRICS_ADDR)")
	cmd.Flags().Bool("watch", true, "reload the catalog when its files change (APPFUNCTIONS_WATCH)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, cmd *cobra.Command) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := root.runtime(ctx, cmd, reg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.Watch {
		go func() {
			if err := rt.catalog.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rt.log.ErrorContext(ctx, "appfunctions.catalog.watch.fail", slog.String("err", err.Error()))
			}
		}()
	}

	if rt.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              rt.cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			rt.log.InfoContext(ctx, "appfunctions.metrics.listen", slog.String("addr", rt.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.ErrorContext(ctx, "appfunctions.metrics.fail", slog.String("err", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	bridge := mcpbridge.New(rt.svc, mcpbridge.WithLogger(rt.log))
	h := stdio.NewHandler(bridge,
		stdio.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
		stdio.WithLogger(rt.log),
		stdio.WithServerInfo(mcp.ImplementationInfo{Name: "appfunctions", Version: Version}),
	)
	rt.log.InfoContext(ctx, "appfunctions.serve.start", slog.String("dir", rt.cfg.CatalogDir), slog.Int("functions", len(rt.svc.List(""))))
	if err := h.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
