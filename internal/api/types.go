package api

import (
	"time"

	"github.com/google/uuid"
)

type BookTokenRequest struct {
	DoctorID     string `json:"doctor_id"`
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	Source       string `json:"source"`
}

type BookTokenResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	TokenNumber   int       `json:"token_number"`
	SlotID        uuid.UUID `json:"slot_id"`
	EstimatedTime time.Time `json:"estimated_time"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	SlotID       uuid.UUID `json:"slot_id"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	PriorityRank int       `json:"priority_rank"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type QueueTokenItem struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone"`
	TokenNumber   int       `json:"token_number"`
	CreatedAt     time.Time `json:"created_at"`
}

type QueueResponse struct {
	DoctorID        uuid.UUID        `json:"doctor_id"`
	SlotID          uuid.UUID        `json:"slot_id"`
	SlotStartTime   time.Time        `json:"slot_start_time"`
	SlotEndTime     time.Time        `json:"slot_end_time"`
	Capacity        int              `json:"capacity"`
	Booked          int              `json:"booked"`
	NextTokenNumber int              `json:"next_token_number"`
	Tokens          []QueueTokenItem `json:"tokens"`
}

type CreateDoctorRequest struct {
	Name           string  `json:"name"`
	Specialization *string `json:"specialization,omitempty"`
	DoctorCode     string  `json:"doctor_code"`
}

type DoctorResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization *string   `json:"specialization,omitempty"`
	DoctorCode     string    `json:"doctor_code"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateSlotRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
