// Command tatuscanctl bundles the inventory maintenance tasks: duplicate
// cleanup, activation backfill, legacy database conversion, and manual
// record entry.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"
)

const usage = `usage: tatuscanctl <command> [flags]

Commands:
  dedup       remove duplicate records, keeping the most recent per hostname
  activation  backfill computer_activation dates from an asset report CSV
  convert     import a legacy SQLite database into the current schema
  add         post a manual inventory record
  help        show this message

Run "tatuscanctl <command> -h" for the flags of each command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "dedup":
		err = runDedup(args)
	case "activation":
		err = runActivation(args)
	case "convert":
		err = runConvert(args)
	case "add":
		err = runAdd(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "tatuscanctl: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tatuscanctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}
