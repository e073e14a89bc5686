package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(start, end time.Time) TimeSlot {
	return TimeSlot{StartTime: start, EndTime: end, Capacity: 5}
}

func TestSelectBookingTarget(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	morning := slotAt(now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	afternoon := slotAt(now.Add(1*time.Hour), now.Add(2*time.Hour))
	evening := slotAt(now.Add(5*time.Hour), now.Add(6*time.Hour))

	t.Run("no slots", func(t *testing.T) {
		_, err := SelectBookingTarget(nil, now)
		assert.ErrorIs(t, err, ErrNoSlotsAvailable)
	})

	t.Run("all ended", func(t *testing.T) {
		_, err := SelectBookingTarget([]TimeSlot{morning}, now)
		assert.ErrorIs(t, err, ErrAllSlotsEnded)
	})

	t.Run("skips ended slots", func(t *testing.T) {
		slot, err := SelectBookingTarget([]TimeSlot{evening, morning, afternoon}, now)
		require.NoError(t, err)
		assert.Equal(t, afternoon.StartTime, slot.StartTime)
	})

	t.Run("slot ending exactly now is ended", func(t *testing.T) {
		boundary := slotAt(now.Add(-time.Hour), now)
		_, err := SelectBookingTarget([]TimeSlot{boundary}, now)
		assert.ErrorIs(t, err, ErrAllSlotsEnded)
	})

	t.Run("in-progress slot is still a target", func(t *testing.T) {
		inProgress := slotAt(now.Add(-30*time.Minute), now.Add(30*time.Minute))
		slot, err := SelectBookingTarget([]TimeSlot{afternoon, inProgress}, now)
		require.NoError(t, err)
		assert.Equal(t, inProgress.StartTime, slot.StartTime)
	})
}

func TestSelectQueueTarget(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	morning := slotAt(now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	afternoon := slotAt(now.Add(1*time.Hour), now.Add(2*time.Hour))

	t.Run("no slots", func(t *testing.T) {
		_, err := SelectQueueTarget(nil)
		assert.ErrorIs(t, err, ErrNoSlotFound)
	})

	// Unlike the booking target, the queue target does not skip ended
	// slots: the earliest one always wins.
	t.Run("earliest wins even if ended", func(t *testing.T) {
		slot, err := SelectQueueTarget([]TimeSlot{afternoon, morning})
		require.NoError(t, err)
		assert.Equal(t, morning.StartTime, slot.StartTime)
	})
}

func TestSelectBookingTargetDoesNotMutateInput(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	slots := []TimeSlot{
		slotAt(now.Add(5*time.Hour), now.Add(6*time.Hour)),
		slotAt(now.Add(1*time.Hour), now.Add(2*time.Hour)),
	}
	first := slots[0].StartTime

	_, err := SelectBookingTarget(slots, now)
	require.NoError(t, err)
	assert.Equal(t, first, slots[0].StartTime)
}
