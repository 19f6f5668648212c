package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/activation"
	"github.com/carlosrabelo/tatuscan/internal/apiclient"
)

// runActivation backfills computer_activation dates from an asset report
// CSV, matching inventory hostnames to asset numbers.
func runActivation(args []string) error {
	fs := flag.NewFlagSet("activation", flag.ExitOnError)
	csvPath := fs.String("csv", "inventario.csv", "asset report CSV (NUMERO, DATA DA CARGA)")
	apiBase := fs.String("api-base", "", "API base URL (default: TATUSCAN_URL or "+apiclient.DefaultBase+")")
	dryRun := fs.Bool("dry-run", false, "report what would be updated without patching")
	if err := fs.Parse(args); err != nil {
		return err
	}

	index, err := activation.LoadCSV(*csvPath)
	if err != nil {
		return err
	}
	fmt.Printf("numbers loaded from report: %d\n", len(index))

	client := apiclient.New(apiclient.ResolveBase(*apiBase))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records, err := client.List(ctx)
	if err != nil {
		return fmt.Errorf("list inventory: %w", err)
	}

	plan := activation.Plan(records, index)

	updated := 0
	var errs []string
	for _, change := range plan.Changes {
		fmt.Printf("update %s (%s): number %s -> %s\n", change.Hostname, change.MachineID, change.Number, change.Date)
		if *dryRun {
			continue
		}
		if err := client.PatchActivation(ctx, change.MachineID, change.Date); err != nil {
			errs = append(errs, fmt.Sprintf("update %s: %v", change.MachineID, err))
			continue
		}
		updated++
	}

	fmt.Printf("hostnames analyzed: %d\n", plan.Total)
	fmt.Printf("hostnames with number: %d\n", plan.WithNumber)
	fmt.Printf("matches in report: %d\n", plan.Matches)
	if *dryRun {
		fmt.Printf("records to update (dry-run): %d\n", len(plan.Changes))
	} else {
		fmt.Printf("records updated: %d\n", updated)
	}
	if len(errs) > 0 {
		fmt.Println("errors during update:")
		for _, msg := range errs {
			fmt.Printf(" - %s\n", msg)
		}
	}
	return nil
}
