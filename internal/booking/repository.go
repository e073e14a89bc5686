package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// Uniqueness-constraint rejections surfaced by the storage layer.
	ErrDoctorCodeExists          = errors.New("doctor code already exists")
	ErrPatientExists             = errors.New("patient with this phone already exists")
	ErrSlotExists                = errors.New("identical slot already exists for this doctor")
	ErrTokenNumberTaken          = errors.New("token number already taken for this slot")
	ErrTokenExistsForAppointment = errors.New("appointment already has a token")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Doctors
	CreateDoctor(ctx context.Context, name string, specialization *string, code string) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	// Slots
	CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*TimeSlot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]TimeSlot, error)

	// Patients
	GetPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	CreatePatient(ctx context.Context, name, phone string) (*Patient, error)

	// Appointments
	CountBookedAppointments(ctx context.Context, slotID uuid.UUID) (int, error)
	HasBookedAppointment(ctx context.Context, patientID, slotID uuid.UUID) (bool, error)
	CreateBookedAppointment(ctx context.Context, doctorID, patientID, slotID uuid.UUID, source Source, rank int) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Tokens
	MaxTokenNumber(ctx context.Context, slotID uuid.UUID) (int, error)
	InsertToken(ctx context.Context, appointmentID, slotID uuid.UUID, number int, source Source) (*Token, error)
	ListQueueEntries(ctx context.Context, slotID uuid.UUID) ([]QueueEntry, error)
}
