package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	ProviderID      string `json:"provider_id"`
	PatientID       string `json:"patient_id"`
	SpecialtyID     string `json:"specialty_id"`
	StartsAt        string `json:"starts_at"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes"`
}

type RescheduleAppointmentRequest struct {
	StartsAt        string `json:"starts_at"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	SpecialtyID     uuid.UUID `json:"specialty_id"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
}

type SlotsResponse struct {
	ProviderID      uuid.UUID   `json:"provider_id"`
	Date            string      `json:"date"`
	DurationMinutes int         `json:"duration_minutes"`
	Slots           []time.Time `json:"slots"`
}

type CalendarResponse struct {
	ProviderID uuid.UUID `json:"provider_id"`
	// Zero when each day used its window's own slot length.
	DurationMinutes int                    `json:"duration_minutes,omitempty"`
	Days            map[string][]time.Time `json:"days"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
