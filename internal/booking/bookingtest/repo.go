// Package bookingtest provides an in-memory Repository for tests. It
// emulates the storage layer's uniqueness constraints, including the
// (slot, token_number) rejection the token allocator retries against.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medoc/opd-token-engine/internal/booking"
)

type Repo struct {
	mu sync.Mutex

	doctors      map[uuid.UUID]*booking.Doctor
	slots        map[uuid.UUID]*booking.TimeSlot
	patients     map[uuid.UUID]*booking.Patient
	appointments map[uuid.UUID]*booking.Appointment
	tokens       map[uuid.UUID]*booking.Token

	// InsertTokenHook, when set, runs inside InsertToken before the
	// constraint check. Returning a non-nil error aborts the insert with it.
	InsertTokenHook func(slotID uuid.UUID, number int) error
}

func NewRepo() *Repo {
	return &Repo{
		doctors:      make(map[uuid.UUID]*booking.Doctor),
		slots:        make(map[uuid.UUID]*booking.TimeSlot),
		patients:     make(map[uuid.UUID]*booking.Patient),
		appointments: make(map[uuid.UUID]*booking.Appointment),
		tokens:       make(map[uuid.UUID]*booking.Token),
	}
}

// Seed helpers

func (r *Repo) AddDoctor(name, code string, active bool) *booking.Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := &booking.Doctor{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	r.doctors[d.ID] = d
	return d
}

func (r *Repo) AddSlot(doctorID uuid.UUID, start, end time.Time, capacity int) *booking.TimeSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &booking.TimeSlot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
	}
	r.slots[s.ID] = s
	return s
}

func (r *Repo) Appointment(id uuid.UUID) *booking.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.appointments[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (r *Repo) PatientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patients)
}

// Repository implementation

func (r *Repo) CreateDoctor(ctx context.Context, name string, specialization *string, code string) (*booking.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.doctors {
		if d.Code == code {
			return nil, booking.ErrDoctorCodeExists
		}
	}

	d := &booking.Doctor{
		ID:             uuid.New(),
		Name:           name,
		Specialization: specialization,
		Code:           code,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	r.doctors[d.ID] = d
	cp := *d
	return &cp, nil
}

func (r *Repo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*booking.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, booking.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *Repo) ListDoctors(ctx context.Context) ([]booking.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []booking.Doctor
	for _, d := range r.doctors {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Repo) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*booking.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.slots {
		if s.DoctorID == doctorID && s.StartTime.Equal(start) && s.EndTime.Equal(end) {
			return nil, booking.ErrSlotExists
		}
	}

	s := &booking.TimeSlot{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Capacity:  capacity,
		CreatedAt: time.Now().UTC(),
	}
	r.slots[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *Repo) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]booking.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []booking.TimeSlot
	for _, s := range r.slots {
		if s.DoctorID == doctorID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (r *Repo) GetPatientByPhone(ctx context.Context, phone string) (*booking.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.patients {
		if p.Phone == phone {
			cp := *p
			return &cp, nil
		}
	}
	return nil, booking.ErrPatientNotFound
}

func (r *Repo) CreatePatient(ctx context.Context, name, phone string) (*booking.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.patients {
		if p.Phone == phone {
			return nil, booking.ErrPatientExists
		}
	}

	p := &booking.Patient{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	r.patients[p.ID] = p
	cp := *p
	return &cp, nil
}

func (r *Repo) CountBookedAppointments(ctx context.Context, slotID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Status == booking.StatusBooked {
			count++
		}
	}
	return count, nil
}

func (r *Repo) HasBookedAppointment(ctx context.Context, patientID, slotID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.PatientID == patientID && a.SlotID == slotID && a.Status == booking.StatusBooked {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repo) CreateBookedAppointment(ctx context.Context, doctorID, patientID, slotID uuid.UUID, source booking.Source, rank int) (*booking.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	a := &booking.Appointment{
		ID:           uuid.New(),
		DoctorID:     doctorID,
		PatientID:    patientID,
		SlotID:       slotID,
		Status:       booking.StatusBooked,
		Source:       source,
		PriorityRank: rank,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *Repo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, booking.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *Repo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to booking.AppointmentStatus) (*booking.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		// Mirrors the conditional UPDATE matching zero rows.
		return nil, booking.ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (r *Repo) MaxTokenNumber(ctx context.Context, slotID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := 0
	for _, t := range r.tokens {
		if t.SlotID == slotID && t.Number > max {
			max = t.Number
		}
	}
	return max, nil
}

func (r *Repo) InsertToken(ctx context.Context, appointmentID, slotID uuid.UUID, number int, source booking.Source) (*booking.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InsertTokenHook != nil {
		if err := r.InsertTokenHook(slotID, number); err != nil {
			return nil, err
		}
	}

	for _, t := range r.tokens {
		if t.SlotID == slotID && t.Number == number {
			return nil, booking.ErrTokenNumberTaken
		}
		if t.AppointmentID == appointmentID {
			return nil, booking.ErrTokenExistsForAppointment
		}
	}

	t := &booking.Token{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		SlotID:        slotID,
		Number:        number,
		Source:        source,
		CreatedAt:     time.Now().UTC(),
	}
	r.tokens[t.ID] = t
	cp := *t
	return &cp, nil
}

func (r *Repo) ListQueueEntries(ctx context.Context, slotID uuid.UUID) ([]booking.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []booking.QueueEntry
	for _, t := range r.tokens {
		if t.SlotID != slotID {
			continue
		}
		a, ok := r.appointments[t.AppointmentID]
		if !ok || a.Status != booking.StatusBooked {
			continue
		}
		p, ok := r.patients[a.PatientID]
		if !ok {
			continue
		}
		result = append(result, booking.QueueEntry{
			AppointmentID: a.ID,
			PatientName:   p.Name,
			PatientPhone:  p.Phone,
			TokenNumber:   t.Number,
			CreatedAt:     t.CreatedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenNumber < result[j].TokenNumber
	})
	return result, nil
}
