package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout is the timeout for shutting down the metrics server.
const shutdownTimeout = 5 * time.Second

// metricsServer serves the Prometheus metrics over HTTP.
type metricsServer struct {
	logger *slog.Logger
	srv    *http.Server
	addr   net.Addr
}

// newMetricsServer binds to addr and starts serving the metrics from reg in a
// separate goroutine.
func newMetricsServer(
	logger *slog.Logger,
	addr string,
	reg *prometheus.Registry,
) (s *metricsServer, err error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening: %w", err)
	}

	s = &metricsServer{
		logger: logger.With(slogutil.KeyPrefix, "metrics"),
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr: l.Addr(),
	}

	go s.serve(l)

	s.logger.Info("serving metrics", "addr", s.addr)

	return s, nil
}

// serve serves the HTTP requests on l until the server is shut down.
func (s *metricsServer) serve(l net.Listener) {
	defer slogutil.RecoverAndLog(context.Background(), s.logger)

	err := s.srv.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("serving", slogutil.KeyError, err)
	}
}

// shutdown gracefully stops the server.  It doesn't depend on the cancellation
// of ctx.
func (s *metricsServer) shutdown(ctx context.Context) (err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = s.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}

	return nil
}
