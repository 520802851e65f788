package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"iocviewer/internal/server"
	"iocviewer/internal/threat"
)

func main() {
	cfg := server.LoadConfig()

	store := threat.NewMemoryStore()
	controller := threat.NewETLController(store, threat.ETLOptions{
		CacheTTL:        cfg.CacheTTL,
		UpstreamTimeout: cfg.UpstreamTimeout,
	})
	client := &http.Client{Timeout: cfg.UpstreamTimeout}
	controller.Register(threat.NewAbuseFetcher(client))
	controller.Register(threat.NewAlienVaultFetcher(client))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout+5*time.Second)
	if err := controller.Run(ctx); err != nil {
		slog.Warn("initial load failed, serving on demand", "err", err)
	}
	cancel()

	srv := server.New(controller, cfg)
	srv.StartMetrics(cfg.MetricsAddr)
	go func() {
		if err := srv.StartGRPC(cfg.GRPCAddr); err != nil {
			slog.Error("grpc server error", "err", err)
		}
	}()
	defer srv.StopGRPC()

	slog.Info("listening", "addr", cfg.HTTPAddr, "metrics", cfg.MetricsAddr, "grpc", cfg.GRPCAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.Router()); err != nil {
		slog.Error("server error", "err", err)
	}
}
