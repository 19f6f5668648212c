// Package web serves the HTML dashboard pages on top of the inventory
// service.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/inventory"
	"github.com/carlosrabelo/tatuscan/internal/models"
	"github.com/carlosrabelo/tatuscan/internal/reports"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	homeTmpl   = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/home.html"))
	reportTmpl = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/report.html"))
	chartsTmpl = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/charts.html"))
)

// Handler serves the dashboard. Now may be overridden in tests; when nil,
// wall clock time is used.
type Handler struct {
	Svc *inventory.Service
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type homePage struct {
	OSList      []reports.Count
	VersionList []reports.Count
	AgeBuckets  []reports.AgeBucket
	Stats       reports.AgeStats
}

// Home handles GET / with the OS and version tables plus age statistics.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	records, err := h.Svc.List("hostname", "asc")
	if err != nil {
		renderError(w, err)
		return
	}
	buckets := reports.AgeDistribution(records, h.now())
	render(w, homeTmpl, homePage{
		OSList:      reports.OSDistribution(records),
		VersionList: reports.VersionDistribution(records),
		AgeBuckets:  buckets,
		Stats:       reports.Stats(buckets),
	})
}

type reportPage struct {
	Records []*models.InventoryRecord
	Sort    string
	Dir     string
}

// NextDir returns the direction a column header link should use: clicking the
// current sort column flips its direction, any other column starts ascending.
func (p reportPage) NextDir(column string) string {
	if p.Sort == column && p.Dir == "asc" {
		return "desc"
	}
	return "asc"
}

// Report handles GET /report with the full inventory table. Sorting follows
// the same ?sort and ?dir parameters as the machine list API.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderBy := strings.ToLower(q.Get("sort"))
	if orderBy == "" {
		orderBy = "hostname"
	}
	direction := strings.ToLower(q.Get("dir"))
	if direction == "" {
		direction = "asc"
	}

	records, err := h.Svc.List(orderBy, direction)
	if err != nil {
		renderError(w, err)
		return
	}
	render(w, reportTmpl, reportPage{Records: records, Sort: orderBy, Dir: direction})
}

type chartData struct {
	OSLabels      []string `json:"os_labels"`
	OSValues      []int    `json:"os_values"`
	VersionLabels []string `json:"version_labels"`
	VersionValues []int    `json:"version_values"`
	AgeLabels     []string `json:"age_labels"`
	AgeValues     []int    `json:"age_values"`
}

type chartsPage struct {
	TopN int
	Data chartData
}

// Charts handles GET /charts. The ?top parameter caps the version chart;
// anything unparseable or below one falls back to the default.
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	topN := reports.DefaultTopVersions
	if raw := r.URL.Query().Get("top"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			topN = n
		}
	}

	records, err := h.Svc.List("hostname", "asc")
	if err != nil {
		renderError(w, err)
		return
	}

	var data chartData
	data.OSLabels, data.OSValues = splitCounts(reports.OSDistribution(records))
	data.VersionLabels, data.VersionValues = splitCounts(reports.TopVersions(records, topN))
	data.AgeLabels, data.AgeValues = splitAges(reports.AgeDistribution(records, h.now()))

	render(w, chartsTmpl, chartsPage{TopN: topN, Data: data})
}

func splitCounts(counts []reports.Count) ([]string, []int) {
	labels := make([]string, len(counts))
	values := make([]int, len(counts))
	for i, c := range counts {
		labels[i] = c.Label
		values[i] = c.Count
	}
	return labels, values
}

func splitAges(buckets []reports.AgeBucket) ([]string, []int) {
	labels := make([]string, len(buckets))
	values := make([]int, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Label
		values[i] = b.Count
	}
	return labels, values
}

// render executes the layout into a buffer first so a template failure can
// still produce a clean 500 instead of a half-written page.
func render(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("render dashboard page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w) //nolint:errcheck
}

func renderError(w http.ResponseWriter, err error) {
	slog.Error("load dashboard data", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
