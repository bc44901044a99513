package alarm

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/rest"
)

type AlarmDTO struct {
	EventID       string `json:"eventId"`
	Title         string `json:"title"`
	StartTime     string `json:"startTime"`
	CalendarID    string `json:"calendarId"`
	SnoozeMinutes int    `json:"snoozeMinutes,omitempty"`
	TriggerTime   string `json:"triggerTime"`
}

type SnoozeRequest struct {
	DelayMinutes int `json:"delayMinutes"`
	// Optional event data used to reconstruct the row if it was removed by a
	// concurrent reconciliation pass.
	Title      string `json:"title,omitempty"`
	StartTime  string `json:"startTime,omitempty"`
	CalendarID string `json:"calendarId,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

func (h *Handler) ListAlarms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	alarms, err := h.service.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := make([]AlarmDTO, 0, len(alarms))
	for _, a := range alarms {
		response = append(response, alarmToDTO(a))
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) SnoozeAlarm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	eventID := mux.Vars(r)["eventId"]
	log.Trace("Snoozing alarm ", eventID)

	var request SnoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error: "Invalid request body format",
		})
		if encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
			return
		}
		return
	}

	if request.DelayMinutes <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error: "delayMinutes must be positive",
		})
		if encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
			return
		}
		return
	}

	fallback, err := fallbackFromRequest(request)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		encodeErr := json.NewEncoder(w).Encode(rest.ErrorResponse{
			Error:   "Invalid startTime format",
			Details: "Start time must be in RFC3339 format",
		})
		if encodeErr != nil {
			http.Error(w, encodeErr.Error(), http.StatusInternalServerError)
			return
		}
		return
	}

	delay := time.Duration(request.DelayMinutes) * time.Minute
	snoozed, err := h.service.Snooze(r.Context(), eventID, delay, fallback)
	if err != nil {
		if errors.Is(err, ErrAlarmNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(alarmToDTO(snoozed)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DisableAlarm(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["eventId"]
	log.Trace("Disabling alarm ", eventID)

	if err := h.service.Disable(r.Context(), eventID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func fallbackFromRequest(request SnoozeRequest) (*ScheduledAlarm, error) {
	if request.StartTime == "" {
		return nil, nil
	}
	startTime, err := time.Parse(time.RFC3339, request.StartTime)
	if err != nil {
		return nil, err
	}
	return &ScheduledAlarm{
		Title:      request.Title,
		StartTime:  startTime,
		CalendarID: request.CalendarID,
	}, nil
}

func alarmToDTO(a ScheduledAlarm) AlarmDTO {
	return AlarmDTO{
		EventID:       a.EventID,
		Title:         a.Title,
		StartTime:     a.StartTime.Format(time.RFC3339),
		CalendarID:    a.CalendarID,
		SnoozeMinutes: int(a.SnoozeOffset / time.Minute),
		TriggerTime:   a.TriggerTime().Format(time.RFC3339),
	}
}
