package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/infrastructure/google"
	"github.com/huavcjj/followup/internal/service/followup"
	"github.com/huavcjj/followup/internal/service/ingest"
	"github.com/huavcjj/followup/internal/service/reminder"
)

const maxBodyBytes = 1 << 20

// Handler serves the JSON API over the tracking services.
type Handler struct {
	pipeline   *ingest.Pipeline
	followups  *followup.Service
	reminders  *reminder.Service
	maxResults int
}

func NewHandler(pipeline *ingest.Pipeline, followups *followup.Service, reminders *reminder.Service, maxResults int) *Handler {
	return &Handler{
		pipeline:   pipeline,
		followups:  followups,
		reminders:  reminders,
		maxResults: maxResults,
	}
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.HandleSearch)
	mux.HandleFunc("GET /api/labels", h.HandleLabels)
	mux.HandleFunc("GET /api/emails", h.HandleListEmails)
	mux.HandleFunc("GET /api/emails/{id}", h.HandleGetEmail)
	mux.HandleFunc("PATCH /api/emails/{id}", h.HandleUpdateEmail)
	mux.HandleFunc("GET /api/analytics", h.HandleAnalytics)
	mux.HandleFunc("POST /api/reminders", h.HandleCreateReminders)
	mux.HandleFunc("GET /api/reminders/upcoming", h.HandleUpcoming)
	mux.HandleFunc("DELETE /api/reminders/{id}", h.HandleCancelReminder)
	mux.HandleFunc("GET /api/backups", h.HandleBackups)
	mux.HandleFunc("POST /api/backups/restore", h.HandleRestore)
	mux.HandleFunc("GET /api/settings", h.HandleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.HandlePutSettings)
	mux.HandleFunc("POST /api/export", h.HandleExport)
}

type searchRequest struct {
	LookbackDays     *int     `json:"lookback_days"`
	Keywords         *string  `json:"keywords"`
	ExcludeAutomated *bool    `json:"exclude_automated"`
	MaxResults       int      `json:"max_results"`
	LabelIDs         []string `json:"label_ids"`
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}

	st := h.followups.Settings(r.Context())
	params := ingest.Params{
		LookbackDays:     st.DefaultLookbackDays,
		Keywords:         st.DefaultKeywords,
		ExcludeAutomated: true,
		MaxResults:       h.maxResults,
		LabelIDs:         req.LabelIDs,
	}
	if req.LookbackDays != nil {
		params.LookbackDays = *req.LookbackDays
	}
	if req.Keywords != nil {
		params.Keywords = *req.Keywords
	}
	if req.ExcludeAutomated != nil {
		params.ExcludeAutomated = *req.ExcludeAutomated
	}
	if req.MaxResults > 0 {
		params.MaxResults = req.MaxResults
	}

	result, err := h.pipeline.Run(r.Context(), params)
	if err != nil && result == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		slog.Error("pipeline run finished with errors", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Labels(r.Context()))
}

func (h *Handler) HandleListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := followup.Filter{Query: q.Get("q")}
	for _, s := range splitParam(q["status"]) {
		filter.Statuses = append(filter.Statuses, tracking.Status(s))
	}
	for _, p := range splitParam(q["priority"]) {
		filter.Priorities = append(filter.Priorities, tracking.Priority(p))
	}

	rows, err := h.followups.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) HandleGetEmail(w http.ResponseWriter, r *http.Request) {
	row, err := h.followups.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

type updateRequest struct {
	Status       *tracking.Status   `json:"status"`
	Priority     *tracking.Priority `json:"priority"`
	Notes        *string            `json:"notes"`
	FinalOutcome *string            `json:"final_outcome"`
}

// HandleUpdateEmail applies the fields present in the body. A status change
// carries the notes with it, as one edit.
func (h *Handler) HandleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")

	var row *tracking.TrackedEmail
	var err error
	switch {
	case req.Status != nil:
		row, err = h.followups.UpdateStatus(ctx, id, *req.Status, req.Notes)
	case req.Notes != nil:
		row, err = h.followups.UpdateNotes(ctx, id, *req.Notes)
	}
	if err == nil && req.Priority != nil {
		row, err = h.followups.UpdatePriority(ctx, id, *req.Priority)
	}
	if err == nil && req.FinalOutcome != nil {
		row, err = h.followups.SetOutcome(ctx, id, *req.FinalOutcome)
	}
	if err == nil && row == nil {
		row, err = h.followups.Get(ctx, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.followups.Analytics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	byStatus, err := h.followups.StatusSummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"by_status": byStatus,
	})
}

type reminderRequest struct {
	EmailIDs     []string  `json:"email_ids"`
	At           time.Time `json:"at"`
	SpacingHours int       `json:"spacing_hours"`
}

func (h *Handler) HandleCreateReminders(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.EmailIDs) == 0 {
		http.Error(w, "email_ids is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if len(req.EmailIDs) == 1 && req.SpacingHours == 0 {
		sc, err := h.reminders.Schedule(ctx, req.EmailIDs[0], req.At)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, []reminder.Scheduled{*sc})
		return
	}

	scheduled, err := h.reminders.ScheduleBulk(ctx, req.EmailIDs, req.At, time.Duration(req.SpacingHours)*time.Hour)
	if err != nil && len(scheduled) == 0 {
		writeError(w, err)
		return
	}
	if err != nil {
		slog.Error("bulk reminders partially saved", "error", err)
	}
	writeJSON(w, http.StatusCreated, scheduled)
}

func (h *Handler) HandleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	events, err := h.reminders.Upcoming(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleCancelReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.reminders.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.followups.Backups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BackupID string `json:"backup_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.followups.Restore(r.Context(), req.BackupID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.followups.Settings(r.Context()))
}

func (h *Handler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	st := h.followups.Settings(r.Context())
	if !decode(w, r, &st) {
		return
	}
	if err := h.followups.SaveSettings(r.Context(), st); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	path, err := h.followups.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tracking.ErrNotFound), errors.Is(err, tracking.ErrBackupNotFound):
		return http.StatusNotFound
	case errors.Is(err, followup.ErrInvalidStatus),
		errors.Is(err, followup.ErrInvalidPriority),
		errors.Is(err, followup.ErrInvalidSettings),
		errors.Is(err, ingest.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, reminder.ErrNoReminder):
		return http.StatusConflict
	case errors.Is(err, google.ErrNotAuthenticated), errors.Is(err, google.ErrCredentialsMissing):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
