package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("SIGNAL_DESK_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	runs, err := db.NewStore(pool).ListRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Status", "Fetched", "Inserted", "Updated", "Deduped", "Skipped", "Stale", "Expired", "Duration", "Started At"})

	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{
			r.ID.String()[:8], r.Status, r.Fetched, r.Inserted, r.Updated, r.Deduped, r.Skipped,
			r.Stale, r.Expired, duration, r.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}
