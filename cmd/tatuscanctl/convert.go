package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/convert"
	"github.com/carlosrabelo/tatuscan/internal/db"
)

// runConvert copies records from a legacy SQLite inventory database into
// a database with the current schema.
func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	src := fs.String("src", "/tmp/tatuscan_legacy.db", "legacy SQLite database path")
	dst := fs.String("dst", "/tmp/tatuscan_new.db", "destination SQLite database path")
	timezone := fs.String("timezone", defaultTimezone(), "timezone for naive timestamps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", *timezone, err)
	}

	dest, err := db.New(*dst, loc)
	if err != nil {
		return fmt.Errorf("open destination database: %w", err)
	}
	defer dest.Close()

	conv := &convert.Converter{Dest: dest, Loc: loc, Logf: log.Printf}
	res, err := conv.Run(*src)
	if err != nil {
		return err
	}

	fmt.Printf("records read: %d\n", res.Read)
	fmt.Printf("records inserted: %d\n", res.Inserted)
	fmt.Printf("records updated: %d\n", res.Updated)
	if res.Skipped > 0 {
		fmt.Printf("records skipped: %d\n", res.Skipped)
	}
	return nil
}

func defaultTimezone() string {
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		return tz
	}
	return "America/Cuiaba"
}
