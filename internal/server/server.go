package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"iocviewer/internal/threat"
)

// BatchProvider returns the current batch of a source.
type BatchProvider interface {
	Batch(ctx context.Context, source threat.SourceID) (*threat.IndicatorBatch, error)
	Sources() []threat.SourceID
}

// Server serves indicator batches over HTTP and reports health over gRPC.
type Server struct {
	provider BatchProvider
	cfg      *Config
	router   *mux.Router
	grpcSrv  *grpc.Server
	health   *health.Server
}

func New(provider BatchProvider, cfg *Config) *Server {
	s := &Server{
		provider: provider,
		cfg:      cfg,
		router:   mux.NewRouter(),
		grpcSrv:  grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpcSrv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/iocs", s.handleIOCs).Methods(http.MethodGet)
	s.router.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Use(corsMiddleware)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) StartMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// StartGRPC serves the standard gRPC health service. Each source is
// registered as a service name whose status follows its last fetch.
func (s *Server) StartGRPC(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeGRPC(ln)
}

func (s *Server) ServeGRPC(ln net.Listener) error {
	return s.grpcSrv.Serve(ln)
}

func (s *Server) StopGRPC() {
	s.health.Shutdown()
	s.grpcSrv.GracefulStop()
}

func (s *Server) handleIOCs(w http.ResponseWriter, r *http.Request) {
	source := threat.SourceID(r.URL.Query().Get("source"))
	if source == "" {
		source = threat.SourceAbuseIPDB
	}
	if err := threat.ValidateSource(source); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	batch, err := s.provider.Batch(r.Context(), source)
	switch {
	case err != nil && batch == nil:
		s.health.SetServingStatus(string(source), healthpb.HealthCheckResponse_NOT_SERVING)
		status := http.StatusBadGateway
		if errors.Is(err, threat.ErrUnknownSource) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	case err != nil:
		slog.Warn("serving stored batch after upstream failure", "source", source, "err", err)
		w.Header().Set("Warning", `110 - "Response is Stale"`)
		s.health.SetServingStatus(string(source), healthpb.HealthCheckResponse_NOT_SERVING)
	default:
		s.health.SetServingStatus(string(source), healthpb.HealthCheckResponse_SERVING)
	}

	writeJSON(w, http.StatusOK, threat.NewDocument(batch))
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.provider.Sources()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed writing response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
