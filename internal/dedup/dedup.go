// Package dedup finds inventory records that share a hostname and plans
// which duplicates to remove.
package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/models"
)

// Group is one hostname with more than one record. Keep is the most recently
// seen record; Drop holds the rest, newest first.
type Group struct {
	Hostname string
	Keep     *models.InventoryRecord
	Drop     []*models.InventoryRecord
}

// Plan groups records by trimmed hostname and selects the survivor of each
// duplicate group. Records with blank hostnames are ignored, as are hostnames
// seen only once. Groups come back sorted by hostname.
func Plan(records []*models.InventoryRecord) []Group {
	byHost := make(map[string][]*models.InventoryRecord)
	for _, rec := range records {
		hostname := strings.TrimSpace(rec.Hostname)
		if hostname == "" {
			continue
		}
		byHost[hostname] = append(byHost[hostname], rec)
	}

	var groups []Group
	for hostname, recs := range byHost {
		if len(recs) < 2 {
			continue
		}
		sort.SliceStable(recs, func(i, j int) bool {
			return moreRecent(recs[i], recs[j])
		})
		groups = append(groups, Group{Hostname: hostname, Keep: recs[0], Drop: recs[1:]})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Hostname < groups[j].Hostname
	})
	return groups
}

// moreRecent orders records newest first by last-seen time, breaking ties on
// creation time.
func moreRecent(a, b *models.InventoryRecord) bool {
	la, lb := LastSeen(a), LastSeen(b)
	if !la.Equal(lb) {
		return la.After(lb)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// LastSeen returns the moment the record was last written: updated_at when
// present, created_at otherwise.
func LastSeen(rec *models.InventoryRecord) time.Time {
	if rec.UpdatedAt != nil {
		return *rec.UpdatedAt
	}
	return rec.CreatedAt
}

// Deleter removes an inventory record by machine ID.
type Deleter interface {
	Delete(ctx context.Context, machineID string) error
}

// Result summarizes an Apply pass.
type Result struct {
	Deleted int
	Errors  []error
}

// Apply deletes every non-surviving record in groups. Failures are collected
// per record; one failed delete does not stop the rest.
func Apply(ctx context.Context, groups []Group, deleter Deleter) Result {
	var res Result
	for _, g := range groups {
		for _, rec := range g.Drop {
			if err := deleter.Delete(ctx, rec.MachineID); err != nil {
				res.Errors = append(res.Errors,
					fmt.Errorf("delete %s (hostname %s): %w", rec.MachineID, g.Hostname, err))
				continue
			}
			res.Deleted++
		}
	}
	return res
}
