package booking

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrNoSlotsAvailable = errors.New("no slots available for this doctor")
	ErrAllSlotsEnded    = errors.New("all doctor slots already ended")
	ErrNoSlotFound      = errors.New("no slot found for this doctor")
)

// SelectBookingTarget picks the slot a new booking is routed to: the earliest
// slot by start time whose end time is still in the future. Callers never name
// a slot themselves, there is one global booking target per doctor at a time.
func SelectBookingTarget(slots []TimeSlot, now time.Time) (*TimeSlot, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlotsAvailable
	}

	// Comparison is instant-based; times without an explicit offset are
	// normalized to UTC at the API boundary before they get here.
	ordered := sortedByStart(slots)
	for i := range ordered {
		if ordered[i].EndTime.After(now) {
			return &ordered[i], nil
		}
	}

	return nil, ErrAllSlotsEnded
}

// SelectQueueTarget picks the slot the queue projection reads: always the
// earliest slot by start time, whether or not it has ended. This deliberately
// differs from SelectBookingTarget, which skips ended slots.
func SelectQueueTarget(slots []TimeSlot) (*TimeSlot, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlotFound
	}

	ordered := sortedByStart(slots)
	return &ordered[0], nil
}

func sortedByStart(slots []TimeSlot) []TimeSlot {
	ordered := make([]TimeSlot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})
	return ordered
}
