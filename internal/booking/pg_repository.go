package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the slice of pgxpool.Pool the repository needs. Narrowed so
// tests can substitute a pgxmock pool.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Constraint names from the schema. The storage layer's rejections on these
// are what the resolver and the token allocator retry against.
const (
	constraintDoctorCode       = "uq_doctors_code"
	constraintPatientPhone     = "uq_patients_phone"
	constraintDoctorSlot       = "uq_doctor_slot"
	constraintSlotTokenNumber  = "uq_slot_token_number"
	constraintTokenAppointment = "uq_tokens_appointment"
)

const pgUniqueViolation = "23505"

// uniqueViolation maps a 23505 on a known constraint to its sentinel error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintDoctorCode:
		return ErrDoctorCodeExists
	case constraintPatientPhone:
		return ErrPatientExists
	case constraintDoctorSlot:
		return ErrSlotExists
	case constraintSlotTokenNumber:
		return ErrTokenNumberTaken
	case constraintTokenAppointment:
		return ErrTokenExistsForAppointment
	}
	return nil
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialization *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialization,
		&d.Code,
		&d.Active,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialization = specialization
	return &d, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.Capacity,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotID,
		&a.Status,
		&a.Source,
		&a.PriorityRank,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanToken(row pgx.Row) (*Token, error) {
	var t Token

	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.SlotID,
		&t.Number,
		&t.Source,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, name string, specialization *string, code string) (*Doctor, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, doctor_code, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, now())
		RETURNING id, name, specialization, doctor_code, is_active, created_at
	`, id, name, specialization, code)

	doctor, err := scanDoctor(row)
	if err != nil {
		if uerr := uniqueViolation(err); uerr != nil {
			return nil, uerr
		}
		return nil, err
	}
	return doctor, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, doctor_code, is_active, created_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialization, doctor_code, is_active, created_at
		FROM doctors
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time, capacity int) (*TimeSlot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_slots (id, doctor_id, start_time, end_time, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, doctor_id, start_time, end_time, capacity, created_at
	`, id, doctorID, start, end, capacity)

	slot, err := scanSlot(row)
	if err != nil {
		if uerr := uniqueViolation(err); uerr != nil {
			return nil, uerr
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_time, end_time, capacity, created_at
		FROM time_slots
		WHERE doctor_id = $1
		ORDER BY start_time ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

// Patients

func (r *PgRepository) GetPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, created_at
		FROM patients
		WHERE phone = $1
	`, phone)
	return scanPatient(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, name, phone string) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, name, phone, created_at
	`, id, name, phone)

	patient, err := scanPatient(row)
	if err != nil {
		if uerr := uniqueViolation(err); uerr != nil {
			return nil, uerr
		}
		return nil, err
	}
	return patient, nil
}

// Appointments

func (r *PgRepository) CountBookedAppointments(ctx context.Context, slotID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE slot_id = $1 AND status = 'BOOKED'
	`, slotID).Scan(&count)
	return count, err
}

func (r *PgRepository) HasBookedAppointment(ctx context.Context, patientID, slotID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE patient_id = $1 AND slot_id = $2 AND status = 'BOOKED'
		)
	`, patientID, slotID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CreateBookedAppointment(ctx context.Context, doctorID, patientID, slotID uuid.UUID, source Source, rank int) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, slot_id, status, source, priority_rank, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'BOOKED', $5, $6, now(), now())
		RETURNING id, doctor_id, patient_id, slot_id, status, source, priority_rank, created_at, updated_at
	`, id, doctorID, patientID, slotID, source, rank)

	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, slot_id, status, source, priority_rank, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, slot_id, status, source, priority_rank, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

// Tokens

func (r *PgRepository) MaxTokenNumber(ctx context.Context, slotID uuid.UUID) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0)
		FROM tokens
		WHERE slot_id = $1
	`, slotID).Scan(&max)
	return max, err
}

func (r *PgRepository) InsertToken(ctx context.Context, appointmentID, slotID uuid.UUID, number int, source Source) (*Token, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO tokens (id, appointment_id, slot_id, token_number, source, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, appointment_id, slot_id, token_number, source, created_at
	`, id, appointmentID, slotID, number, source)

	token, err := scanToken(row)
	if err != nil {
		if uerr := uniqueViolation(err); uerr != nil {
			return nil, uerr
		}
		return nil, err
	}
	return token, nil
}

func (r *PgRepository) ListQueueEntries(ctx context.Context, slotID uuid.UUID) ([]QueueEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, p.name, p.phone, t.token_number, t.created_at
		FROM tokens t
		JOIN appointments a ON a.id = t.appointment_id
		JOIN patients p ON p.id = a.patient_id
		WHERE t.slot_id = $1
		  AND a.status = 'BOOKED'
		ORDER BY t.token_number ASC
	`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.AppointmentID, &e.PatientName, &e.PatientPhone, &e.TokenNumber, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return result, rows.Err()
}
