package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"iocviewer/internal/threat"
)

func main() {
	source := flag.String("source", string(threat.SourceAbuseIPDB), "indicator source to fetch")
	output := flag.String("output", "iocs.json", "path of the JSON file to write")
	csvPath := flag.String("csv", "", "optional path of a CSV copy")
	timeout := flag.Duration("timeout", 30*time.Second, "upstream timeout")
	flag.Parse()

	id := threat.SourceID(*source)
	if err := threat.ValidateSource(id); err != nil {
		slog.Error("invalid source", "err", err, "available", threat.ListSources())
		os.Exit(2)
	}

	store := threat.NewMemoryStore()
	controller := threat.NewETLController(store, threat.ETLOptions{UpstreamTimeout: *timeout})
	client := &http.Client{Timeout: *timeout}
	switch id {
	case threat.SourceAbuseIPDB:
		controller.Register(threat.NewAbuseFetcher(client))
	case threat.SourceAlienVault:
		controller.Register(threat.NewAlienVaultFetcher(client))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	batch, err := controller.Batch(ctx, id)
	if err != nil {
		slog.Error("etl run failed", "source", id, "err", err)
		os.Exit(1)
	}

	if err := writeFile(*output, batch, threat.WriteJSON); err != nil {
		slog.Error("writing json", "path", *output, "err", err)
		os.Exit(1)
	}
	slog.Info("saved indicators", "source", id, "count", len(batch.Items), "path", *output)

	if *csvPath != "" {
		if err := writeFile(*csvPath, batch, threat.WriteCSV); err != nil {
			slog.Error("writing csv", "path", *csvPath, "err", err)
			os.Exit(1)
		}
		slog.Info("saved csv", "path", *csvPath)
	}
}

func writeFile(path string, batch *threat.IndicatorBatch, write func(w io.Writer, batch *threat.IndicatorBatch) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, batch); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
