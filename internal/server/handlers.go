package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/events"
	"github.com/callveil/callveil/internal/redact"
	"github.com/callveil/callveil/internal/vaultstore"
)

const maxRequestBody = 4 << 20 // 4 MB

// maskRequest is the POST /v1/mask payload. CallID is optional; when set and
// Redis persistence is enabled, the vault mapping is stored under it.
type maskRequest struct {
	CallID string `json:"call_id,omitempty"`
	Text   string `json:"text"`
}

// maskResponse returns the masked text and the mapping needed to reverse it.
// The mapping is for the caller only and must not be forwarded to any
// external service.
type maskResponse struct {
	CallID   string            `json:"call_id,omitempty"`
	Masked   string            `json:"masked"`
	Mapping  map[string]string `json:"mapping"`
	Findings []redact.Finding  `json:"findings"`
}

// rehydrateRequest is the POST /v1/rehydrate payload. Either Mapping or a
// CallID with a persisted vault must be supplied.
type rehydrateRequest struct {
	CallID   string            `json:"call_id,omitempty"`
	Document json.RawMessage   `json:"document"`
	Mapping  map[string]string `json:"mapping,omitempty"`
}

type rehydrateResponse struct {
	CallID   string `json:"call_id,omitempty"`
	Document any    `json:"document"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"callveil",
		"version":%q,
		"vault_store_enabled":%t,
		"websocket_enabled":%t
	}`, Version, s.vaultStore != nil, s.config.WebSocket.Enabled)
}

// handleMask masks all detected PII in the submitted text.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	start := time.Now()
	result, err := s.engine.Mask(r.Context(), req.Text)
	if err != nil {
		s.logger.Error("Masking failed", zap.Error(err), zap.String("call_id", req.CallID))
		writeError(w, http.StatusInternalServerError, "masking failed")
		return
	}

	if s.vaultStore != nil && req.CallID != "" {
		if err := s.vaultStore.Save(r.Context(), req.CallID, result.Mapping); err != nil {
			s.logger.Error("Failed to persist vault mapping", zap.Error(err), zap.String("call_id", req.CallID))
			writeError(w, http.StatusInternalServerError, "vault persistence failed")
			return
		}
	}

	total := 0
	for _, f := range result.Findings {
		total += f.Count
	}
	s.wsHub.BroadcastEvent(events.Event{
		Type:      events.EventTypeDetection,
		Timestamp: time.Now(),
		RequestID: requestIDFrom(r.Context()),
		Data: events.DetectionEvent{
			CallID:        req.CallID,
			Findings:      result.Findings,
			TotalFindings: total,
			ProcessingMS:  float64(time.Since(start).Nanoseconds()) / 1e6,
		},
	})

	writeJSON(w, http.StatusOK, maskResponse{
		CallID:   req.CallID,
		Masked:   result.Masked,
		Mapping:  result.Mapping,
		Findings: result.Findings,
	})
}

// handleRehydrate restores original values in a document. The mapping comes
// from the request body, or from the persisted vault when only a call ID is
// supplied.
func (s *Server) handleRehydrate(w http.ResponseWriter, r *http.Request) {
	var req rehydrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	mapping := req.Mapping
	if mapping == nil {
		if s.vaultStore == nil || req.CallID == "" {
			writeError(w, http.StatusBadRequest, "mapping or call_id with persisted vault is required")
			return
		}
		loaded, err := s.vaultStore.Load(r.Context(), req.CallID)
		if err != nil {
			if errors.Is(err, vaultstore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no vault mapping for call_id")
				return
			}
			s.logger.Error("Vault lookup failed", zap.Error(err), zap.String("call_id", req.CallID))
			writeError(w, http.StatusInternalServerError, "vault lookup failed")
			return
		}
		mapping = loaded
	}

	var document any
	if err := json.Unmarshal(req.Document, &document); err != nil {
		writeError(w, http.StatusBadRequest, "document is not valid JSON")
		return
	}

	writeJSON(w, http.StatusOK, rehydrateResponse{
		CallID:   req.CallID,
		Document: redact.Rehydrate(document, mapping),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
