package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medoc/opd-token-engine/internal/booking"
)

func newTestCache(t *testing.T, ttl time.Duration) (*QueueCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewQueueCache(client, ttl), mr
}

func sampleView(doctorID uuid.UUID) *booking.QueueView {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &booking.QueueView{
		DoctorID:        doctorID,
		SlotID:          uuid.New(),
		SlotStartTime:   now,
		SlotEndTime:     now.Add(time.Hour),
		Capacity:        6,
		Booked:          2,
		NextTokenNumber: 4,
		Entries: []booking.QueueEntry{
			{AppointmentID: uuid.New(), PatientName: "Ravi", PatientPhone: "+15550000001", TokenNumber: 1, CreatedAt: now},
			{AppointmentID: uuid.New(), PatientName: "Meera", PatientPhone: "+15550000002", TokenNumber: 3, CreatedAt: now},
		},
	}
}

func TestQueueCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	doctorID := uuid.New()

	_, ok := cache.Get(ctx, doctorID)
	assert.False(t, ok)

	view := sampleView(doctorID)
	cache.Set(ctx, doctorID, view)

	got, ok := cache.Get(ctx, doctorID)
	require.True(t, ok)
	assert.Equal(t, view.NextTokenNumber, got.NextTokenNumber)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "Meera", got.Entries[1].PatientName)
}

func TestQueueCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	doctorID := uuid.New()

	cache.Set(ctx, doctorID, sampleView(doctorID))
	cache.Invalidate(ctx, doctorID)

	_, ok := cache.Get(ctx, doctorID)
	assert.False(t, ok)
}

func TestQueueCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t, 5*time.Second)
	ctx := context.Background()
	doctorID := uuid.New()

	cache.Set(ctx, doctorID, sampleView(doctorID))

	mr.FastForward(6 * time.Second)

	_, ok := cache.Get(ctx, doctorID)
	assert.False(t, ok)
}

func TestQueueCacheIsolatedPerDoctor(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()

	cache.Set(ctx, a, sampleView(a))
	cache.Invalidate(ctx, b)

	_, ok := cache.Get(ctx, a)
	assert.True(t, ok)
	_, ok = cache.Get(ctx, b)
	assert.False(t, ok)
}
