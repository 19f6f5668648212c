package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/apiclient"
)

// runAdd creates an inventory record by hand for machines the agent
// cannot run on.
func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	hostname := fs.String("hostname", "", "hostname of the machine (required)")
	osName := fs.String("os", "Chrome OS", "operating system name")
	osVersion := fs.String("os-version", "", "operating system version")
	machineID := fs.String("machine-id", "", "machine id (default: derived from hostname)")
	ip := fs.String("ip", "0.0.0.0", "IP address")
	cpuPercent := fs.Float64("cpu-percent", 0, "CPU usage percent")
	salt := fs.String("salt", "", "salt mixed into the derived machine id")
	apiBase := fs.String("api-base", "", "API base URL (default: TATUSCAN_URL or "+apiclient.DefaultBase+")")
	dryRun := fs.Bool("dry-run", false, "print the payload without sending it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*hostname) == "" {
		return fmt.Errorf("-hostname is required")
	}

	id := *machineID
	if id == "" {
		id = deriveMachineID(*hostname, *salt)
	}

	payload := apiclient.ReportPayload{
		MachineID:  id,
		Hostname:   *hostname,
		IP:         *ip,
		OS:         *osName,
		OSVersion:  *osVersion,
		CPUPercent: *cpuPercent,
	}

	if *dryRun {
		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("[dry-run] POST %s/machines\n%s\n", apiclient.ResolveBase(*apiBase), body)
		return nil
	}

	client := apiclient.New(apiclient.ResolveBase(*apiBase))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := client.Report(ctx, payload)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("%s: inventory created\n", *hostname)
	} else {
		fmt.Printf("%s: inventory updated\n", *hostname)
	}
	return nil
}

// deriveMachineID derives a stable machine id from the hostname and an
// optional salt.
func deriveMachineID(hostname, salt string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(hostname) + salt))
	return hex.EncodeToString(sum[:])
}
