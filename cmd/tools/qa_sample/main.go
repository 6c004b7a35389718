package main

import (
	"context"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/signal-desk/internal/app"
	"github.com/david/signal-desk/internal/config"
	"github.com/david/signal-desk/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("SIGNAL_DESK_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(false, false)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, zl)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	res, err := a.Sampler.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Signal", "Verdict", "URL", "Plausible", "Duplicate", "Bogus", "Contact", "Fresh", "Realness", "Action"})
	for _, s := range res.Samples {
		t.AppendRow(table.Row{
			s.SignalID.String()[:8], s.Verdict, s.URLCheck, s.ClassificationPlausible,
			s.IsDuplicate, s.IsBogus, s.HasContact, s.IsFresh, s.RealnessScore, s.ActionabilityScore,
		})
	}
	t.Render()
	log.Printf("run %s: %d sampled, %d failed, verdicts %v", res.RunID, len(res.Samples), res.Failed, res.Verdicts)
}
