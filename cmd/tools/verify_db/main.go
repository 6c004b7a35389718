package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

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
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	counts, err := db.NewStore(pool).CountRows(ctx)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	tables := make([]string, 0, len(counts))
	for name := range counts {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		fmt.Printf("%-20s %d\n", name+":", counts[name])
	}
}
