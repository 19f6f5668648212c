package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/apiclient"
	"github.com/carlosrabelo/tatuscan/internal/dedup"
	"github.com/carlosrabelo/tatuscan/internal/models"
)

// runDedup removes duplicated hostname records through the API, keeping
// the most recently seen record of each group.
func runDedup(args []string) error {
	fs := flag.NewFlagSet("dedup", flag.ExitOnError)
	apiBase := fs.String("api-base", "", "API base URL (default: TATUSCAN_URL or "+apiclient.DefaultBase+")")
	dryRun := fs.Bool("dry-run", false, "report what would be removed without deleting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := apiclient.New(apiclient.ResolveBase(*apiBase))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("list inventory: %w", err)
	}

	groups := dedup.Plan(records)
	flagged := 0
	for _, g := range groups {
		fmt.Printf("duplicate hostname: %s (total: %d)\n", g.Hostname, len(g.Drop)+1)
		fmt.Printf("  keep: machine_id=%s date=%s\n", g.Keep.MachineID, recordDate(g.Keep))
		for _, rec := range g.Drop {
			fmt.Printf("  drop: machine_id=%s date=%s\n", rec.MachineID, recordDate(rec))
			flagged++
		}
	}

	fmt.Printf("hostnames with duplicates: %d\n", len(groups))
	if *dryRun {
		fmt.Printf("records flagged (dry-run): %d\n", flagged)
		return nil
	}

	res := dedup.Apply(ctx, groups, client)
	fmt.Printf("records removed: %d\n", res.Deleted)
	if len(res.Errors) > 0 {
		fmt.Println("errors during removal:")
		for _, err := range res.Errors {
			fmt.Printf(" - %v\n", err)
		}
	}
	return nil
}

func recordDate(rec *models.InventoryRecord) string {
	if t := dedup.LastSeen(rec); !t.IsZero() {
		return t.Format(time.RFC3339)
	}
	return "unknown"
}
