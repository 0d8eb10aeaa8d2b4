package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsAddress = flag.String("metrics_address", ":9090",
	"The ip:port serving prometheus metrics on /metrics; empty disables it.")

// serveMetrics exposes the default prometheus registry over HTTP until `ctx` is done.
func serveMetrics(ctx context.Context) error {
	if *metricsAddress == "" {
		slog.Info("Metrics server is disabled.")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: *metricsAddress, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrSignal := make(chan error, 1)
	go func() {
		serverErrSignal <- server.ListenAndServe()
	}()
	slog.Info("Metrics server started.", "address", *metricsAddress)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	case err := <-serverErrSignal:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
