package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/db"
)

func main() {
	provider := flag.String("provider", "", "only this provider")
	days := flag.Int("days", 7, "days of history")
	flag.Parse()

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

	from := time.Now().UTC().AddDate(0, 0, -(max(1, *days) - 1)).Format("2006-01-02")
	entries, err := db.NewStore(pool).ListLedger(ctx, *provider, from)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Date", "Provider", "Requests", "Req Cap", "Records", "Rec Cap", "Alert"})
	for _, e := range entries {
		alert := ""
		if e.AlertFired {
			alert = "FIRED"
		}
		t.AppendRow(table.Row{e.Date, e.Provider, e.RequestsMade, e.RequestCap, e.NewRecordsIngested, e.RecordCap, alert})
	}
	t.Render()
}
