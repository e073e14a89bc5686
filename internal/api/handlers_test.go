package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medoc/opd-token-engine/internal/booking"
	"github.com/medoc/opd-token-engine/internal/booking/bookingtest"
)

type testEnv struct {
	router *chi.Mux
	repo   *bookingtest.Repo
	doctor *booking.Doctor
	slot   *booking.TimeSlot
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	repo := bookingtest.NewRepo()
	doctor := repo.AddDoctor("Dr. Asha Rao", "DOC-0001", true)
	start := time.Now().UTC().Add(time.Hour)
	slot := repo.AddSlot(doctor.ID, start, start.Add(time.Hour), capacity)

	svc := booking.NewService(repo, booking.NewAllocator(repo, booking.DefaultAllocatorAttempts), nil)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/book", bookTokenHandler(svc))
		r.Patch("/appointments/{id}/cancel", cancelAppointmentHandler(svc))
		r.Patch("/appointments/{id}/serve", serveAppointmentHandler(svc))
		r.Post("/doctors", createDoctorHandler(svc))
		r.Get("/doctors", listDoctorsHandler(svc))
		r.Get("/doctors/{id}", getDoctorHandler(svc))
		r.Get("/doctors/{id}/queue", getQueueHandler(svc))
		r.Post("/doctors/{id}/slots", createSlotHandler(svc))
		r.Get("/doctors/{id}/slots", listSlotsHandler(svc))
	})

	return &testEnv{router: r, repo: repo, doctor: doctor, slot: slot}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) book(t *testing.T, name, phone string) BookTokenResponse {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID:     e.doctor.ID.String(),
		PatientName:  name,
		PatientPhone: phone,
		Source:       "ONLINE",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp BookTokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestBookTokenEndpoint(t *testing.T) {
	env := newTestEnv(t, 6)

	resp := env.book(t, "Ravi Kumar", "+15550000001")
	assert.Equal(t, 1, resp.TokenNumber)
	assert.Equal(t, env.slot.ID, resp.SlotID)
	assert.WithinDuration(t, env.slot.StartTime, resp.EstimatedTime, time.Second)
	assert.NotEqual(t, uuid.Nil, resp.AppointmentID)
}

func TestBookTokenEndpointBadRequests(t *testing.T) {
	env := newTestEnv(t, 6)

	rec := env.do(t, http.MethodPost, "/api/v1/book", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID: "not-a-uuid", PatientName: "A", PatientPhone: "+15550000001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_doctor_id", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID: env.doctor.ID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_patient", decodeError(t, rec).Error)
}

func TestBookTokenEndpointDomainErrors(t *testing.T) {
	env := newTestEnv(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID: uuid.NewString(), PatientName: "A", PatientPhone: "+15550000001", Source: "ONLINE",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor_not_found", decodeError(t, rec).Error)

	env.book(t, "A", "+15550000001")

	// The capacity guard runs before the duplicate check, so a full slot
	// answers slot_full even for a repeat patient.
	rec = env.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID: env.doctor.ID.String(), PatientName: "A", PatientPhone: "+15550000001", Source: "ONLINE",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_full", decodeError(t, rec).Error)
}

func TestDuplicateBookingEndpoint(t *testing.T) {
	env := newTestEnv(t, 5)

	env.book(t, "A", "+15550000001")

	rec := env.do(t, http.MethodPost, "/api/v1/book", BookTokenRequest{
		DoctorID: env.doctor.ID.String(), PatientName: "A", PatientPhone: "+15550000001", Source: "ONLINE",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_booked", decodeError(t, rec).Error)
}

func TestCancelAndServeEndpoints(t *testing.T) {
	env := newTestEnv(t, 5)

	resp := env.book(t, "A", "+15550000001")
	path := fmt.Sprintf("/api/v1/appointments/%s/cancel", resp.AppointmentID)

	rec := env.do(t, http.MethodPatch, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var appt AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&appt))
	assert.Equal(t, "CANCELLED", appt.Status)

	// Second cancel hits a terminal state.
	rec = env.do(t, http.MethodPatch, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/appointments/%s/serve", resp.AppointmentID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/appointments/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/appointments/%s/cancel", uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueEndpoint(t *testing.T) {
	env := newTestEnv(t, 3)

	env.book(t, "A", "+15550000001")
	second := env.book(t, "B", "+15550000002")
	env.book(t, "C", "+15550000003")

	rec := env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/appointments/%s/cancel", second.AppointmentID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/queue", env.doctor.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var queue QueueResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&queue))

	assert.Equal(t, env.slot.ID, queue.SlotID)
	assert.Equal(t, 3, queue.Capacity)
	assert.Equal(t, 2, queue.Booked)
	assert.Equal(t, 4, queue.NextTokenNumber)
	require.Len(t, queue.Tokens, 2)
	assert.Equal(t, 1, queue.Tokens[0].TokenNumber)
	assert.Equal(t, 3, queue.Tokens[1].TokenNumber)
	assert.Equal(t, "C", queue.Tokens[1].PatientName)
}

func TestQueueEndpointErrors(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/queue", uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "doctor_not_found", decodeError(t, rec).Error)

	bare, err := env.repo.CreateDoctor(context.Background(), "Dr. Bare", nil, "DOC-0099")
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/queue", bare.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_slot_found", decodeError(t, rec).Error)
}

func TestDoctorEndpoints(t *testing.T) {
	env := newTestEnv(t, 3)

	rec := env.do(t, http.MethodPost, "/api/v1/doctors", CreateDoctorRequest{
		Name: "Dr. New", DoctorCode: "DOC-0002",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created DoctorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, created.IsActive)

	rec = env.do(t, http.MethodPost, "/api/v1/doctors", CreateDoctorRequest{
		Name: "Dr. Clone", DoctorCode: "DOC-0002",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "doctor_code_exists", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/doctors", CreateDoctorRequest{Name: "Dr. NoCode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/doctors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doctors []DoctorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doctors))
	assert.Len(t, doctors, 2)

	rec = env.do(t, http.MethodGet, "/api/v1/doctors/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/doctors/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSlotEndpoints(t *testing.T) {
	env := newTestEnv(t, 3)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/doctors/%s/slots", env.doctor.ID), CreateSlotRequest{
		StartTime: start, EndTime: start.Add(time.Hour), Capacity: 8,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var slot SlotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&slot))
	assert.Equal(t, 8, slot.Capacity)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/doctors/%s/slots", env.doctor.ID), CreateSlotRequest{
		StartTime: start, EndTime: start.Add(time.Hour), Capacity: 8,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_exists", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/doctors/%s/slots", env.doctor.ID), CreateSlotRequest{
		StartTime: start, EndTime: start, Capacity: 8,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_slot_window", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/doctors/%s/slots", env.doctor.ID), CreateSlotRequest{
		StartTime: start, EndTime: start.Add(time.Hour), Capacity: 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_slot_capacity", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%s/slots", env.doctor.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []SlotResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&slots))
	assert.Len(t, slots, 2)
}
