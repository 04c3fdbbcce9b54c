// Package metrics holds the prometheus collectors of the proxy and serves
// them over http.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the registry every collector of the proxy is added to.
	Registry = prometheus.NewRegistry()

	// Lines counts lines passing through the proxy per network and direction.
	Lines = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlproxy_lines_total",
			Help: "Lines seen per network and direction",
		},
		[]string{"network", "direction"},
	)

	// ParseErrors counts lines that were dropped because they did not parse.
	ParseErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlproxy_parse_errors_total",
			Help: "Malformed lines dropped per network",
		},
		[]string{"network"},
	)

	// StateErrors counts lines the state machine refused.
	StateErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlproxy_state_errors_total",
			Help: "Lines that could not be applied to the network state",
		},
		[]string{"network"},
	)

	// Records counts linestack records written by kind.
	Records = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlproxy_linestack_records_total",
			Help: "Linestack records written by kind",
		},
		[]string{"kind"},
	)

	// Replayed counts lines read back from linestacks.
	Replayed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "ctrlproxy_linestack_replayed_total",
			Help: "Linestack lines traversed",
		},
	)

	// Replications counts client replications by backend and outcome.
	Replications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrlproxy_replications_total",
			Help: "Client replications per backend and result",
		},
		[]string{"backend", "result"},
	)

	// Clients is the number of attached clients per network.
	Clients = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctrlproxy_clients",
			Help: "Clients attached per network",
		},
		[]string{"network"},
	)
)

// Handler returns the http handler exposing Registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "metrics: listen on %s", addr)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err = srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "metrics: serve")
	}
	return nil
}
