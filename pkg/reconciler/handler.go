package reconciler

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/rest"
	"github.com/wekker/wekker/pkg/eventsource"
)

type SelectionRequest struct {
	CalendarIds []string `json:"calendarIds"`
}

type CalendarDTO struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Selected bool   `json:"selected"`
}

type Handler struct {
	coalescer  *Coalescer
	reconciler *Reconciler
	source     eventsource.EventSource
}

func NewHandler(coalescer *Coalescer, reconciler *Reconciler, source eventsource.EventSource) *Handler {
	return &Handler{coalescer, reconciler, source}
}

// TriggerSync accepts an external "source changed" signal.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	log.Trace("Manual sync trigger")
	h.coalescer.Notify("manual")
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var request SelectionRequest
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

	h.coalescer.NotifySelectionChanged(request.CalendarIds)
	w.WriteHeader(http.StatusNoContent)
}

// ListCalendars enumerates upstream calendars when the configured source
// supports it.
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	lister, ok := h.source.(eventsource.CalendarLister)
	if !ok {
		http.Error(w, "configured event source cannot list calendars", http.StatusNotImplemented)
		return
	}

	calendars, err := lister.ListCalendars(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	selected := make(map[string]bool)
	for _, id := range h.reconciler.SelectedCalendars() {
		selected[id] = true
	}

	response := make([]CalendarDTO, 0, len(calendars))
	for _, cal := range calendars {
		response = append(response, CalendarDTO{
			ID:       cal.ID,
			Summary:  cal.Summary,
			Selected: selected[cal.ID],
		})
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
