package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carlosrabelo/tatuscan/internal/apiclient"
	"github.com/carlosrabelo/tatuscan/internal/models"
)

// newTestServer starts an httptest.Server that plays the TatuScan REST API.
// handler is called with the request; it writes the desired response.
func newTestServer(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL + "/api")
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func listBody(items ...*models.InventoryRecord) map[string]any {
	if items == nil {
		items = []*models.InventoryRecord{}
	}
	return map[string]any{"items": items, "count": len(items)}
}

// --- ResolveBase ---

func TestResolveBase_EnvWins(t *testing.T) {
	t.Setenv("TATUSCAN_URL", "http://server:8040")
	got := apiclient.ResolveBase("http://flag:9000/api")
	if got != "http://server:8040/api" {
		t.Errorf("got %q, want %q", got, "http://server:8040/api")
	}
}

func TestResolveBase_EnvKeepsExistingAPIPath(t *testing.T) {
	t.Setenv("TATUSCAN_URL", "http://server:8040/api/")
	got := apiclient.ResolveBase("")
	if got != "http://server:8040/api" {
		t.Errorf("got %q, want %q", got, "http://server:8040/api")
	}
}

func TestResolveBase_ExplicitFlag(t *testing.T) {
	t.Setenv("TATUSCAN_URL", "")
	got := apiclient.ResolveBase("http://flag:9000/api/")
	if got != "http://flag:9000/api" {
		t.Errorf("got %q, want %q", got, "http://flag:9000/api")
	}
}

func TestResolveBase_Default(t *testing.T) {
	t.Setenv("TATUSCAN_URL", "")
	got := apiclient.ResolveBase("")
	if got != apiclient.DefaultBase {
		t.Errorf("got %q, want %q", got, apiclient.DefaultBase)
	}
}

func TestWithAPIPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://server:8040", "http://server:8040/api"},
		{"http://server:8040/", "http://server:8040/api"},
		{"http://server:8040/api", "http://server:8040/api"},
		{"http://server:8040/api/", "http://server:8040/api"},
	}
	for _, tt := range tests {
		if got := apiclient.WithAPIPath(tt.in); got != tt.want {
			t.Errorf("WithAPIPath(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Report ---

func TestClient_Report_Created(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %q, want POST", r.Method)
		}
		if r.URL.Path != "/api/machines" {
			t.Errorf("path: got %q, want /api/machines", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q, want application/json", ct)
		}
		var payload apiclient.ReportPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.MachineID != "abc123" {
			t.Errorf("machine_id: got %q, want abc123", payload.MachineID)
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "inventory created"})
	})

	created, err := client.Report(context.Background(), apiclient.ReportPayload{
		MachineID:     "abc123",
		Hostname:      "lab-01",
		IP:            "10.0.0.5",
		OS:            "linux",
		CPUPercent:    3.5,
		MemoryTotalMB: 16384,
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !created {
		t.Error("created: got false, want true")
	}
}

func TestClient_Report_Updated(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "inventory updated"})
	})

	created, err := client.Report(context.Background(), apiclient.ReportPayload{MachineID: "abc123"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if created {
		t.Error("created: got true, want false")
	}
}

func TestClient_Report_ServerError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := client.Report(context.Background(), apiclient.ReportPayload{}); err == nil {
		t.Fatal("expected error on 400 response, got nil")
	}
}

// --- List ---

func TestClient_List(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/machines" {
			t.Errorf("path: got %q, want /api/machines", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, listBody(
			&models.InventoryRecord{MachineID: "id-1", Hostname: "alpha"},
			&models.InventoryRecord{MachineID: "id-2", Hostname: "bravo"},
		))
	})

	got, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len: got %d, want 2", len(got))
	}
	if got[0].Hostname != "alpha" {
		t.Errorf("items[0].Hostname: got %q, want alpha", got[0].Hostname)
	}
}

func TestClient_List_FallsBackToInventoryPath(t *testing.T) {
	var paths []string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/machines" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, listBody(
			&models.InventoryRecord{MachineID: "id-1", Hostname: "alpha"},
		))
	})

	got, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].MachineID != "id-1" {
		t.Errorf("items: got %+v", got)
	}
	want := []string{"/api/machines", "/api/inventory"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("request paths: got %v, want %v", paths, want)
	}
}

func TestClient_List_NoFallbackOnServerError(t *testing.T) {
	var calls int
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.List(context.Background()); err == nil {
		t.Fatal("expected error on 500 response, got nil")
	}
	if calls != 1 {
		t.Errorf("requests: got %d, want 1 (no retry on 500)", calls)
	}
}

func TestClient_List_BothPathsMissing(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := client.List(context.Background()); err == nil {
		t.Fatal("expected error when both listing paths 404, got nil")
	}
}

// --- PatchActivation ---

func TestClient_PatchActivation(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method: got %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/api/machines/abc123" {
			t.Errorf("path: got %q, want /api/machines/abc123", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["computer_activation"] != "2023-09-13" {
			t.Errorf("computer_activation: got %q, want 2023-09-13", body["computer_activation"])
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "inventory updated"})
	})

	if err := client.PatchActivation(context.Background(), "abc123", "2023-09-13"); err != nil {
		t.Fatalf("PatchActivation: %v", err)
	}
}

func TestClient_PatchActivation_NotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.PatchActivation(context.Background(), "ghost", "2023-09-13"); err == nil {
		t.Fatal("expected error on 404 response, got nil")
	}
}

// --- Delete ---

func TestClient_Delete(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method: got %q, want DELETE", r.Method)
		}
		if r.URL.Path != "/api/machines/abc123" {
			t.Errorf("path: got %q, want /api/machines/abc123", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "inventory deleted"})
	})

	if err := client.Delete(context.Background(), "abc123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestClient_Delete_NotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.Delete(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error on 404 response, got nil")
	}
}
