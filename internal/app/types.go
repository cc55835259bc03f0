package app

import "time"

// AttendeeRequest is the body of POST /api/attendee.
type AttendeeRequest struct {
	DateKey string `json:"dateKey"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Mass    string `json:"mass"`
}

// StatusResponse reports the outcome of a write.
type StatusResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	Mode             string    `json:"mode"`
	Storage          string    `json:"storage"`
	RemoteConfigured bool      `json:"remoteConfigured"`
}

// SlotsResponse is the body of GET /api/slots.
type SlotsResponse struct {
	Weekday         string   `json:"weekday"`
	Dates           []string `json:"dates"`
	SlotPreferences []string `json:"slotPreferences"`
}
