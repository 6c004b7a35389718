package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/signal-desk/internal/app"
	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/logger"
)

// Runs one ingest pass against the configured providers and prints the
// per-provider counters.
func main() {
	cfg, err := config.Load(os.Getenv("SIGNAL_DESK_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(false, os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, zl)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	run, err := a.Pipeline.Run(ctx)
	if err != nil && run == nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Provider", "Skipped", "Fetched", "Inserted", "Updated", "Deduped", "Rejected", "Failed", "Note"})
	for _, p := range run.Providers {
		note := p.Reason
		if p.Error != "" {
			note = p.Error
		}
		t.AppendRow(table.Row{p.Provider, p.Skipped, p.Fetched, p.Inserted, p.Updated, p.Deduped, p.Rejected, p.Failed, note})
	}
	t.AppendFooter(table.Row{"TOTAL", run.Skipped, run.Fetched, run.Inserted, run.Updated, run.Deduped, "", "", run.Status})
	t.Render()

	log.Printf("lifecycle: %d stale, %d expired", run.Stale, run.Expired)
	if err != nil {
		log.Fatal(err)
	}
}
