package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carlosrabelo/tatuscan/internal/inventory"
	"github.com/carlosrabelo/tatuscan/internal/models"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Svc *inventory.Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service error kinds to HTTP statuses. Validation
// failures carry the list of missing fields next to the message.
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *inventory.Error
	if !errors.As(err, &svcErr) {
		slog.Error("unexpected handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch svcErr.Kind {
	case inventory.KindValidation:
		if len(svcErr.MissingFields) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":          svcErr.Error(),
				"missing_fields": svcErr.MissingFields,
			})
			return
		}
		writeError(w, http.StatusBadRequest, svcErr.Error())
	case inventory.KindInvalidFormat:
		writeError(w, http.StatusBadRequest, svcErr.Error())
	case inventory.KindNotFound:
		writeError(w, http.StatusNotFound, svcErr.Error())
	default:
		slog.Error("inventory operation failed", "error", svcErr.Unwrap(), "message", svcErr.Message)
		writeError(w, http.StatusInternalServerError, svcErr.Message)
	}
}

// Health handles GET /api/health. Reports unhealthy with a 500 when the
// record store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Ping(); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListMachines handles GET /api/machines and its GET /api/inventory alias.
// Optional sort and dir query parameters pick the ordering.
func (h *Handler) ListMachines(w http.ResponseWriter, r *http.Request) {
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
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []*models.InventoryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": records,
		"count": len(records),
	})
}

// ReportMachine handles POST /api/machines: the first report for a machine ID
// creates the record, every later one fully refreshes it.
func (h *Handler) ReportMachine(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var obs models.Observation
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, created, err := h.Svc.Reconcile(&obs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status, message := http.StatusOK, "inventory updated"
	if created {
		status, message = http.StatusCreated, "inventory created"
	}
	writeJSON(w, status, map[string]any{
		"message": message,
		"item":    rec,
	})
}

// PatchActivation handles PATCH /api/machines/{id}. Only the activation
// fields are patchable; other keys in the body are ignored.
func (h *Handler) PatchActivation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var patch models.ActivationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := h.Svc.PartialUpdate(id, &patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "inventory updated",
		"item":    rec,
	})
}

// DeleteMachine handles DELETE /api/machines/{id}.
func (h *Handler) DeleteMachine(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Svc.Delete(id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "inventory deleted"})
}
