package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"github.com/tutorias/attendance-desk/internal/handler/http/response"
	"github.com/tutorias/attendance-desk/internal/pkg/jwt"
	"github.com/tutorias/attendance-desk/internal/pkg/sse"
)

type AttendanceHandler interface {
	// Sections
	MySections(w http.ResponseWriter, r *http.Request)

	// Editor
	LoadToday(w http.ResponseWriter, r *http.Request)
	Draft(w http.ResponseWriter, r *http.Request)
	SetStudentStatus(w http.ResponseWriter, r *http.Request)
	Revert(w http.ResponseWriter, r *http.Request)
	Save(w http.ResponseWriter, r *http.Request)
	AddGuardianRecord(w http.ResponseWriter, r *http.Request)

	// History
	History(w http.ResponseWriter, r *http.Request)
	InvalidateHistory(w http.ResponseWriter, r *http.Request)

	// SSE
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
	jwtService        jwt.Service
	hub               *sse.Hub
	loc               *time.Location
	keepalive         time.Duration
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService, jwtService jwt.Service, hub *sse.Hub, loc *time.Location) AttendanceHandler {
	if loc == nil {
		loc = time.Local
	}
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		jwtService:        jwtService,
		hub:               hub,
		loc:               loc,
		keepalive:         30 * time.Second,
	}
}

// getIntQueryParam gets an int query parameter with a default value
func getIntQueryParam(r *http.Request, key string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

// MySections implements AttendanceHandler.
func (h *attendanceHandlerImpl) MySections(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sections, err := h.attendanceService.MySections(r.Context(), op.ID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, sections)
}

// LoadToday implements AttendanceHandler.
func (h *attendanceHandlerImpl) LoadToday(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sheet, err := h.attendanceService.LoadToday(r.Context(), op.ID, chi.URLParam(r, "sectionID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, sheet)
}

// Draft implements AttendanceHandler.
func (h *attendanceHandlerImpl) Draft(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sheet, err := h.attendanceService.Draft(r.Context(), op.ID, chi.URLParam(r, "sectionID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, sheet)
}

// SetStudentStatus implements AttendanceHandler.
func (h *attendanceHandlerImpl) SetStudentStatus(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.LinkID = chi.URLParam(r, "linkID")

	sheet, err := h.attendanceService.SetStudentStatus(r.Context(), op.ID, chi.URLParam(r, "sectionID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, sheet)
}

// Revert implements AttendanceHandler.
func (h *attendanceHandlerImpl) Revert(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sheet, err := h.attendanceService.Revert(r.Context(), op.ID, chi.URLParam(r, "sectionID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Changes discarded", sheet)
}

// Save implements AttendanceHandler.
func (h *attendanceHandlerImpl) Save(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sectionID := chi.URLParam(r, "sectionID")
	saved, err := h.attendanceService.Save(r.Context(), op.ID, sectionID)
	if err != nil {
		slog.Warn("Attendance save rejected", slog.String("section_id", sectionID), slog.String("operator_id", op.ID), slog.Any("error", err))
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Attendance saved", saved)
}

// AddGuardianRecord implements AttendanceHandler.
func (h *attendanceHandlerImpl) AddGuardianRecord(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req attendance.GuardianRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	record, err := h.attendanceService.AddGuardianRecord(r.Context(), op.ID, chi.URLParam(r, "sectionID"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Guardian attendance recorded", record)
}

// History implements AttendanceHandler. Month and year default to the
// current month.
func (h *attendanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)

	month, err := getIntQueryParam(r, "month", int(now.Month()))
	if err != nil {
		response.BadRequest(w, "month must be a number", map[string]string{"month": err.Error()})
		return
	}
	year, err := getIntQueryParam(r, "year", now.Year())
	if err != nil {
		response.BadRequest(w, "year must be a number", map[string]string{"year": err.Error()})
		return
	}

	view, err := h.attendanceService.MonthHistory(r.Context(), chi.URLParam(r, "sectionID"), attendance.HistoryFilter{Month: month, Year: year})
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, view)
}

// InvalidateHistory implements AttendanceHandler.
func (h *attendanceHandlerImpl) InvalidateHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.attendanceService.InvalidateHistory(r.Context(), chi.URLParam(r, "sectionID")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "History cache cleared", nil)
}

// GetSSEToken generates a short-lived token for one section's event stream
func (h *attendanceHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	op, err := jwt.OperatorFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(op.ID, chi.URLParam(r, "sectionID"))
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, attendance.SSETokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

type connectedEvent struct {
	Status    string `json:"status"`
	UserID    string `json:"user_id"`
	SectionID string `json:"section_id"`
}

// Stream pushes invalidation events of one section
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, sectionID, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	if sectionID != chi.URLParam(r, "sectionID") {
		http.Error(w, "Token issued for another section", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(sectionID)
	defer cleanup()

	hello, err := json.Marshal(connectedEvent{Status: "connected", UserID: userID, SectionID: sectionID})
	if err != nil {
		http.Error(w, "Failed to open stream", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", hello)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
