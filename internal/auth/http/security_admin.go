package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/slogx"
)

// SecurityAdminHandler exposes the audit trail and the monitoring scan to
// administrators.
type SecurityAdminHandler struct {
	Logs    *service.SecurityLogService
	Monitor *service.MonitorService
}

type securityEventResponse struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id,omitempty"`
	UserRole    string         `json:"user_role,omitempty"`
	EventType   string         `json:"event_type"`
	EventStatus string         `json:"event_status"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Details     string         `json:"details,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toEventResponses(events []domain.SecurityEvent) []securityEventResponse {
	out := make([]securityEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, securityEventResponse{
			ID:          e.ID,
			UserID:      e.UserID,
			UserRole:    e.UserRole,
			EventType:   string(e.EventType),
			EventStatus: string(e.EventStatus),
			IPAddress:   e.IPAddress,
			UserAgent:   e.UserAgent,
			Details:     e.Details,
			Metadata:    e.Metadata,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

func queryLimit(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		return n
	}
	return 0
}

// HandleEvents lists a user's audit trail: GET /v1/admin/security/events?user_id=&role=&limit=.
func (h *SecurityAdminHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	role := r.URL.Query().Get("role")
	if userID == "" || role == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id and role are required")
		return
	}

	events, err := h.Logs.GetUserLogs(r.Context(), userID, role, queryLimit(r))
	if err != nil {
		slogx.FromContext(r.Context()).Error("listing security events failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not list events")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"events": toEventResponses(events),
		"count":  len(events),
	})
}

// HandleFailedLogins lists recent failed logins across all accounts.
func (h *SecurityAdminHandler) HandleFailedLogins(w http.ResponseWriter, r *http.Request) {
	events, err := h.Logs.GetRecentFailedLogins(r.Context(), queryLimit(r))
	if err != nil {
		slogx.FromContext(r.Context()).Error("listing failed logins failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not list failed logins")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"events": toEventResponses(events),
		"count":  len(events),
	})
}

type alertResponse struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}

// HandleScan runs the monitoring checks on demand and returns what fired.
func (h *SecurityAdminHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Monitor.RunSecurityScan(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "scan failed")
		return
	}

	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResponse{
			Type:       a.Type,
			Severity:   a.Severity,
			Message:    a.Message,
			Details:    a.Details,
			DetectedAt: a.DetectedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"alerts": out,
		"count":  len(out),
	})
}
