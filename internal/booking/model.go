package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "BOOKED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusServed    AppointmentStatus = "SERVED"
)

// Source is the channel a booking came through. It is recorded on the
// appointment and its token but does not influence queue ordering.
type Source string

const (
	SourcePriority Source = "PRIORITY"
	SourceFollowUp Source = "FOLLOW_UP"
	SourceOnline   Source = "ONLINE"
	SourceWalkIn   Source = "WALK_IN"
)

const defaultPriorityRank = 3

// Rank maps a source to its numeric priority, lower is higher priority.
// Unrecognized sources get the ONLINE rank rather than being rejected.
func (s Source) Rank() int {
	switch s {
	case SourcePriority:
		return 1
	case SourceFollowUp:
		return 2
	case SourceOnline:
		return 3
	case SourceWalkIn:
		return 4
	default:
		return defaultPriorityRank
	}
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization *string
	Code           string
	Active         bool
	CreatedAt      time.Time
}

type TimeSlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Capacity  int
	CreatedAt time.Time
}

// Duration is the length of the slot window.
func (s TimeSlot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	CreatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	SlotID       uuid.UUID
	Status       AppointmentStatus
	Source       Source
	PriorityRank int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Token is the patient's immutable position in a slot's booking order.
// Cancellation never reclaims or renumbers a token, so numbers for a slot
// are strictly increasing but not necessarily contiguous.
type Token struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	SlotID        uuid.UUID
	Number        int
	Source        Source
	CreatedAt     time.Time
}

// QueueEntry is one waiting patient in the projected queue.
type QueueEntry struct {
	AppointmentID uuid.UUID
	PatientName   string
	PatientPhone  string
	TokenNumber   int
	CreatedAt     time.Time
}

// QueueView is the read-time projection of a doctor's live queue: the BOOKED
// tokens of the queue-target slot ordered by token number. NextTokenNumber
// counts cancelled and served tokens too, Booked does not.
type QueueView struct {
	DoctorID        uuid.UUID
	SlotID          uuid.UUID
	SlotStartTime   time.Time
	SlotEndTime     time.Time
	Capacity        int
	Booked          int
	NextTokenNumber int
	Entries         []QueueEntry
}

// BookingResult is what a successful booking returns to the caller.
type BookingResult struct {
	AppointmentID uuid.UUID
	TokenNumber   int
	SlotID        uuid.UUID
	EstimatedTime time.Time
}

// EstimateServiceTime divides the slot window into capacity equal
// sub-intervals and assigns the Nth token the start of the Nth one. It is a
// static estimate: no-shows and actual service pace are not accounted for.
func EstimateServiceTime(slot TimeSlot, tokenNumber int) time.Time {
	if slot.Capacity <= 0 {
		return slot.StartTime
	}
	per := slot.Duration() / time.Duration(slot.Capacity)
	return slot.StartTime.Add(time.Duration(tokenNumber-1) * per)
}
