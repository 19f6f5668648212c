// Package reports derives dashboard distributions from inventory records.
package reports

import (
	"math"
	"sort"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/models"
)

// DefaultTopVersions caps how many version rows appear before the remainder
// collapses into the "Others" bucket.
const DefaultTopVersions = 8

// daysPerMonth converts a machine age in days to months.
const daysPerMonth = 30.42

// maxStatMonths caps the open-ended age bucket when computing averages and
// the reported maximum.
const maxStatMonths = 120

// Count is one labeled tally of a distribution.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// OSDistribution tallies records per operating system, most common first and
// alphabetical within equal counts. Records with an empty os surface under
// the "-" placeholder.
func OSDistribution(records []*models.InventoryRecord) []Count {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.OS]++
	}
	return placeholderBlank(sortCounts(counts))
}

// VersionDistribution tallies records per OS version, most common first and
// alphabetical within equal counts.
func VersionDistribution(records []*models.InventoryRecord) []Count {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.OSVersion]++
	}
	return placeholderBlank(sortCounts(counts))
}

// TopVersions keeps the topN most common versions and collapses the rest into
// a final "Others" row when any remain.
func TopVersions(records []*models.InventoryRecord, topN int) []Count {
	dist := VersionDistribution(records)
	if topN < 0 {
		topN = 0
	}
	if len(dist) <= topN {
		return dist
	}
	others := 0
	for _, c := range dist[topN:] {
		others += c.Count
	}
	dist = dist[:topN:topN]
	if others > 0 {
		dist = append(dist, Count{Label: "Others", Count: others})
	}
	return dist
}

// sortCounts flattens a tally into rows ordered by count descending, then
// label ascending so equal counts come back in a stable order.
func sortCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// placeholderBlank replaces an empty label with the "-" display placeholder.
// Empty values are counted under their raw key, so the placeholder never
// merges with a literal "-" label.
func placeholderBlank(counts []Count) []Count {
	for i, c := range counts {
		if c.Label == "" {
			counts[i].Label = "-"
		}
	}
	return counts
}

// AgeBucket is one machine-age range in whole months, [Min, Max).
type AgeBucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

func ageRanges() []AgeBucket {
	return []AgeBucket{
		{Label: "0–12", Min: 0, Max: 12},
		{Label: "12–36", Min: 12, Max: 36},
		{Label: "36–60", Min: 36, Max: 60},
		{Label: "60–120", Min: 60, Max: 120},
		{Label: ">120", Min: 120, Max: math.MaxInt32},
	}
}

// AgeDistribution buckets records by machine age in months relative to now.
// Age is whole days since computer_activation divided by 30.42 days per
// month. Records without an activation date, or with one in the future, are
// left out entirely.
func AgeDistribution(records []*models.InventoryRecord, now time.Time) []AgeBucket {
	buckets := ageRanges()
	for _, rec := range records {
		if rec.ComputerActivation == nil {
			continue
		}
		days := math.Floor(now.Sub(*rec.ComputerActivation).Hours() / 24)
		months := days / daysPerMonth
		for i := range buckets {
			if months >= float64(buckets[i].Min) && months < float64(buckets[i].Max) {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// AgeStats summarizes an age histogram for the dashboard.
type AgeStats struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
}

// Stats reduces age buckets to the dashboard totals: machine count, average
// age weighted by bucket midpoints (rounded to one decimal), and the bounds
// of the non-empty buckets. The open-ended bucket counts as 120 months.
func Stats(buckets []AgeBucket) AgeStats {
	var stats AgeStats
	for _, b := range buckets {
		stats.Total += b.Count
	}
	if stats.Total == 0 {
		return stats
	}

	weighted := 0.0
	minSet := false
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		upper := b.Max
		if upper > maxStatMonths {
			upper = maxStatMonths
		}
		weighted += float64(b.Count) * (float64(b.Min) + float64(upper)) / 2
		if !minSet {
			stats.Min = b.Min
			minSet = true
		}
		if upper > stats.Max {
			stats.Max = upper
		}
	}
	stats.Average = math.Round(weighted/float64(stats.Total)*10) / 10
	return stats
}
