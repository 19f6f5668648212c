// Package apiclient is a small HTTP client for the TatuScan REST API, shared
// by the agent and the maintenance commands.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/models"
)

// DefaultBase is the API base of a locally run server.
const DefaultBase = "http://localhost:8040/api"

// Client is an HTTP client for the TatuScan REST API.
type Client struct {
	base       string
	httpClient *http.Client
}

// New creates a Client targeting base, e.g. "http://host:8040/api".
func New(base string) *Client {
	return &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIPath appends the /api prefix to a server URL unless it already
// carries one.
func WithAPIPath(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	return base
}

// ResolveBase picks the API base URL: the TATUSCAN_URL environment variable
// wins (with /api appended when missing), then an explicit flag value, then
// the local default.
func ResolveBase(explicit string) string {
	if env := os.Getenv("TATUSCAN_URL"); env != "" {
		return WithAPIPath(env)
	}
	if explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	return DefaultBase
}

// ReportPayload is the machine report sent by the agent and the add command.
type ReportPayload struct {
	MachineID     string  `json:"machine_id"`
	Hostname      string  `json:"hostname"`
	IP            string  `json:"ip"`
	OS            string  `json:"os"`
	OSVersion     string  `json:"os_version"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// Report POSTs one machine report. The returned flag is true when the server
// created a new record rather than refreshing an existing one.
func (c *Client) Report(ctx context.Context, payload ReportPayload) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/machines", payload)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusOK:
		return false, nil
	}
	return false, fmt.Errorf("report machine: unexpected status %d", resp.StatusCode)
}

// List fetches every inventory record. Servers predating the /machines route
// only answer on /inventory, so a 404 or 405 retries there.
func (c *Client) List(ctx context.Context) ([]*models.InventoryRecord, error) {
	items, retry, err := c.list(ctx, "/machines")
	if err == nil {
		return items, nil
	}
	if !retry {
		return nil, err
	}
	items, _, err = c.list(ctx, "/inventory")
	if err != nil {
		return nil, err
	}
	return items, nil
}

// list fetches one listing path. The returned flag reports whether the
// failure is worth retrying on the legacy path.
func (c *Client) list(ctx context.Context, path string) ([]*models.InventoryRecord, bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return nil, true, fmt.Errorf("list inventory: unexpected status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("list inventory: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Items []*models.InventoryRecord `json:"items"`
		Count int                       `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("decode inventory list: %w", err)
	}
	return body.Items, false, nil
}

// PatchActivation sets the activation date (YYYY-MM-DD) of one machine.
func (c *Client) PatchActivation(ctx context.Context, machineID, date string) error {
	body := map[string]string{"computer_activation": date}
	resp, err := c.doRequest(ctx, http.MethodPatch, "/machines/"+machineID, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("patch machine %q: unexpected status %d", machineID, resp.StatusCode)
	}
	return nil
}

// Delete removes one machine record.
func (c *Client) Delete(ctx context.Context, machineID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/machines/"+machineID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete machine %q: unexpected status %d", machineID, resp.StatusCode)
	}
	return nil
}
