package app

import (
	"github.com/gorilla/mux"
	"github.com/wekker/wekker/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Alarms
	r.HandleFunc("/api/alarms", deps.AlarmHandler.ListAlarms).Methods("GET")
	r.HandleFunc("/api/alarms/{eventId}/snooze", deps.AlarmHandler.SnoozeAlarm).Methods("POST")
	r.HandleFunc("/api/alarms/{eventId}", deps.AlarmHandler.DisableAlarm).Methods("DELETE")

	// Reconciliation triggers
	r.HandleFunc("/api/sync", deps.SyncHandler.TriggerSync).Methods("POST")
	r.HandleFunc("/api/calendars", deps.SyncHandler.ListCalendars).Methods("GET")
	r.HandleFunc("/api/calendars/selection", deps.SyncHandler.UpdateSelection).Methods("PUT")
}
