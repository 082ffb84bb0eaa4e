package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

const shutdownGrace = 5 * time.Second

// Serve exposes g on addr at /metrics until ctx is done. The workers have no
// HTTP surface of their own, so this is their only scrape target. An empty
// addr does nothing.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logg *logger.Logger) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveOn(ctx, ln, g, logg)
}

func serveOn(ctx context.Context, ln net.Listener, g prometheus.Gatherer, logg *logger.Logger) error {
	if logg == nil {
		logg = logger.Nop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	logg.Info(logg.WithField(ctx, "metrics_addr", ln.Addr().String()), "metrics listener started")

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
