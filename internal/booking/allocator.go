package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
)

var ErrTokenAllocationFailed = errors.New("token allocation failed, please retry")

const DefaultAllocatorAttempts = 2

// Allocator assigns the next token number for a slot using optimistic
// concurrency: read the current maximum, try to insert max+1, and on a
// uniqueness-constraint rejection re-read and try again, up to a fixed bound.
// The read is advisory only. Correctness rests entirely on the storage layer
// enforcing the (slot, token_number) constraint atomically at insert time.
type Allocator struct {
	repo     Repository
	attempts int
}

func NewAllocator(repo Repository, attempts int) *Allocator {
	if attempts <= 0 {
		attempts = DefaultAllocatorAttempts
	}
	return &Allocator{repo: repo, attempts: attempts}
}

// Allocate issues the token for an appointment on the given slot. Under heavy
// contention the retry bound can be exhausted, in which case the caller gets
// ErrTokenAllocationFailed and must treat the whole booking as failed.
func (a *Allocator) Allocate(ctx context.Context, appointmentID, slotID uuid.UUID, source Source) (*Token, error) {
	var lastSeenMax int

	for attempt := 1; attempt <= a.attempts; attempt++ {
		max, err := a.repo.MaxTokenNumber(ctx, slotID)
		if err != nil {
			return nil, fmt.Errorf("read max token number: %w", err)
		}
		lastSeenMax = max

		token, err := a.repo.InsertToken(ctx, appointmentID, slotID, max+1, source)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, ErrTokenNumberTaken) {
			// A concurrent allocator won this number. Re-read and retry.
			log.Printf("token number %d taken for slot %s, attempt %d/%d", max+1, slotID, attempt, a.attempts)
			continue
		}
		return nil, fmt.Errorf("insert token: %w", err)
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted, last seen max %d", ErrTokenAllocationFailed, a.attempts, lastSeenMax)
}
