// Package metrics exposes Prometheus metrics for grammar compilation and
// parsing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("fusor.metrics")

var (
	CompileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusor_compile_seconds",
		Help:    "Time spent compiling a grammar into parse tables.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grammar", "mode"})

	CompileConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusor_compile_conflicts_total",
		Help: "Conflicts found while compiling, by resolution.",
	}, []string{"grammar", "resolution"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusor_cache_lookups_total",
		Help: "Table cache lookups by result.",
	}, []string{"result"})

	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusor_parse_seconds",
		Help:    "Time spent parsing a document.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"language", "status"})

	ParsedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusor_parsed_bytes_total",
		Help: "Bytes of source parsed.",
	}, []string{"language"})

	ReusedNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusor_reused_nodes_total",
		Help: "Subtrees taken over from a previous tree without reparsing.",
	}, []string{"language"})

	ErrorNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fusor_error_nodes_total",
		Help: "ERROR nodes inserted by recovery.",
	}, []string{"language"})

	PeakStacks = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fusor_parse_peak_stacks",
		Help:    "Largest number of parse stacks alive at once during a parse.",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	}, []string{"language"})
)

// Server serves /metrics over HTTP.
type Server struct {
	addr   string
	server *http.Server
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// Start begins serving in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("metrics server listening on %s", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server failed: %s", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
