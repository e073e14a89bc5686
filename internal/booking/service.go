package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorInactive          = errors.New("doctor is not active")
	ErrSlotFull                = errors.New("slot is full")
	ErrAlreadyBooked           = errors.New("patient already has a booking in this slot")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// QueueCache is a read-side cache for queue projections. Implementations may
// serve stale views up to their TTL; the service invalidates on every write.
type QueueCache interface {
	Get(ctx context.Context, doctorID uuid.UUID) (*QueueView, bool)
	Set(ctx context.Context, doctorID uuid.UUID, view *QueueView)
	Invalidate(ctx context.Context, doctorID uuid.UUID)
}

type Service struct {
	repo  Repository
	alloc *Allocator
	cache QueueCache
	now   func() time.Time
}

func NewService(repo Repository, alloc *Allocator, cache QueueCache) *Service {
	return &Service{
		repo:  repo,
		alloc: alloc,
		cache: cache,
		now:   time.Now,
	}
}

// BookToken runs the full booking flow for a doctor: pick the booking-target
// slot, enforce capacity, resolve the patient by phone, reject duplicates,
// create the appointment, and allocate its token. Capacity is a soft
// constraint here (count and insert are separate statements); token numbering
// is the hard one, enforced by the allocator against the storage uniqueness
// constraint.
func (s *Service) BookToken(ctx context.Context, doctorID uuid.UUID, patientName, patientPhone string, source Source) (*BookingResult, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	slots, err := s.repo.ListSlotsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slot, err := SelectBookingTarget(slots, s.now())
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.CountBookedAppointments(ctx, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("count booked appointments: %w", err)
	}
	if booked >= slot.Capacity {
		return nil, ErrSlotFull
	}

	patient, err := s.resolvePatient(ctx, patientName, patientPhone)
	if err != nil {
		return nil, err
	}

	dup, err := s.repo.HasBookedAppointment(ctx, patient.ID, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate booking: %w", err)
	}
	if dup {
		return nil, ErrAlreadyBooked
	}

	appt, err := s.repo.CreateBookedAppointment(ctx, doctorID, patient.ID, slot.ID, source, source.Rank())
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	token, err := s.alloc.Allocate(ctx, appt.ID, slot.ID, source)
	if err != nil {
		if errors.Is(err, ErrTokenAllocationFailed) {
			// Compensate: without a token the appointment would linger as an
			// orphan in the queue counts and block any resubmit through the
			// duplicate guard. Cancel it instead.
			if _, cErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCancelled); cErr != nil {
				log.Printf("failed to cancel orphan appointment %s after allocation failure: %v", appt.ID, cErr)
			}
		}
		return nil, err
	}

	s.invalidateQueue(ctx, doctorID)

	return &BookingResult{
		AppointmentID: appt.ID,
		TokenNumber:   token.Number,
		SlotID:        slot.ID,
		EstimatedTime: EstimateServiceTime(*slot, token.Number),
	}, nil
}

// resolvePatient maps a phone number to a stable patient record, creating one
// on first sight. The phone uniqueness constraint is the authority: losing a
// create race means someone else already made the record, so re-fetch.
// The given name is ignored for existing patients.
func (s *Service) resolvePatient(ctx context.Context, name, phone string) (*Patient, error) {
	patient, err := s.repo.GetPatientByPhone(ctx, phone)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	patient, err = s.repo.CreatePatient(ctx, name, phone)
	if err == nil {
		return patient, nil
	}
	if errors.Is(err, ErrPatientExists) {
		patient, err = s.repo.GetPatientByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("re-fetch patient after create race: %w", err)
		}
		return patient, nil
	}
	return nil, fmt.Errorf("create patient: %w", err)
}

// CancelAppointment moves a BOOKED appointment to CANCELLED. The token stays
// as issued; its number is never reclaimed.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled)
}

// ServeAppointment moves a BOOKED appointment to SERVED.
func (s *Service) ServeAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusServed)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusBooked {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidStatusTransition, id, appt.Status)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusBooked, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The conditional update matched nothing: a concurrent transition
			// got there first.
			return nil, fmt.Errorf("%w: appointment %s no longer BOOKED", ErrInvalidStatusTransition, id)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.invalidateQueue(ctx, updated.DoctorID)
	return updated, nil
}

// GetQueue projects the live queue for a doctor's queue-target slot: BOOKED
// entries ordered by token number. next_token_number is the historical max
// plus one, so cancelled and served tokens still count toward it.
func (s *Service) GetQueue(ctx context.Context, doctorID uuid.UUID) (*QueueView, error) {
	if s.cache != nil {
		if view, ok := s.cache.Get(ctx, doctorID); ok {
			return view, nil
		}
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlotsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	slot, err := SelectQueueTarget(slots)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListQueueEntries(ctx, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	max, err := s.repo.MaxTokenNumber(ctx, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("read max token number: %w", err)
	}

	view := &QueueView{
		DoctorID:        doctorID,
		SlotID:          slot.ID,
		SlotStartTime:   slot.StartTime,
		SlotEndTime:     slot.EndTime,
		Capacity:        slot.Capacity,
		Booked:          len(entries),
		NextTokenNumber: max + 1,
		Entries:         entries,
	}

	if s.cache != nil {
		s.cache.Set(ctx, doctorID, view)
	}
	return view, nil
}

func (s *Service) invalidateQueue(ctx context.Context, doctorID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, doctorID)
	}
}

// Doctor and slot management.

func (s *Service) CreateDoctor(ctx context.Context, name string, specialization *string, code string) (*Doctor, error) {
	return s.repo.CreateDoctor(ctx, name, specialization, code)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

var ErrInvalidSlotWindow = errors.New("slot end time must be after start time")
var ErrInvalidSlotCapacity = errors.New("slot capacity must be positive")

func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*TimeSlot, error) {
	if !end.After(start) {
		return nil, ErrInvalidSlotWindow
	}
	if capacity <= 0 {
		return nil, ErrInvalidSlotCapacity
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.CreateSlot(ctx, doctorID, start, end, capacity)
}

func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID) ([]TimeSlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListSlotsByDoctor(ctx, doctorID)
}
