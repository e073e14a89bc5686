package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allocatorRepo scripts MaxTokenNumber and InsertToken responses so retry
// behavior can be driven deterministically.
type allocatorRepo struct {
	Repository

	maxes      []int
	insertErrs []error

	maxCalls    int
	insertCalls []int
}

func (r *allocatorRepo) MaxTokenNumber(ctx context.Context, slotID uuid.UUID) (int, error) {
	max := r.maxes[r.maxCalls]
	r.maxCalls++
	return max, nil
}

func (r *allocatorRepo) InsertToken(ctx context.Context, appointmentID, slotID uuid.UUID, number int, source Source) (*Token, error) {
	idx := len(r.insertCalls)
	r.insertCalls = append(r.insertCalls, number)

	if err := r.insertErrs[idx]; err != nil {
		return nil, err
	}
	return &Token{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		SlotID:        slotID,
		Number:        number,
		Source:        source,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func TestAllocatorFirstAttemptWins(t *testing.T) {
	repo := &allocatorRepo{
		maxes:      []int{4},
		insertErrs: []error{nil},
	}
	alloc := NewAllocator(repo, 2)

	token, err := alloc.Allocate(context.Background(), uuid.New(), uuid.New(), SourceOnline)
	require.NoError(t, err)
	assert.Equal(t, 5, token.Number)
	assert.Equal(t, 1, repo.maxCalls)
}

func TestAllocatorRetriesWithFreshMax(t *testing.T) {
	// First attempt loses the race for number 5; the re-read sees the
	// winner's token and attempt two takes 6.
	repo := &allocatorRepo{
		maxes:      []int{4, 5},
		insertErrs: []error{ErrTokenNumberTaken, nil},
	}
	alloc := NewAllocator(repo, 2)

	token, err := alloc.Allocate(context.Background(), uuid.New(), uuid.New(), SourceWalkIn)
	require.NoError(t, err)
	assert.Equal(t, 6, token.Number)
	assert.Equal(t, []int{5, 6}, repo.insertCalls)
}

func TestAllocatorExhaustsRetryBound(t *testing.T) {
	repo := &allocatorRepo{
		maxes:      []int{0, 1},
		insertErrs: []error{ErrTokenNumberTaken, ErrTokenNumberTaken},
	}
	alloc := NewAllocator(repo, 2)

	_, err := alloc.Allocate(context.Background(), uuid.New(), uuid.New(), SourceOnline)
	assert.ErrorIs(t, err, ErrTokenAllocationFailed)
	assert.Len(t, repo.insertCalls, 2)
}

func TestAllocatorConfigurableAttempts(t *testing.T) {
	repo := &allocatorRepo{
		maxes:      []int{0, 1, 2, 3},
		insertErrs: []error{ErrTokenNumberTaken, ErrTokenNumberTaken, ErrTokenNumberTaken, nil},
	}
	alloc := NewAllocator(repo, 4)

	token, err := alloc.Allocate(context.Background(), uuid.New(), uuid.New(), SourcePriority)
	require.NoError(t, err)
	assert.Equal(t, 4, token.Number)
}

func TestAllocatorDoesNotRetryOtherErrors(t *testing.T) {
	repo := &allocatorRepo{
		maxes:      []int{0},
		insertErrs: []error{ErrTokenExistsForAppointment},
	}
	alloc := NewAllocator(repo, 2)

	_, err := alloc.Allocate(context.Background(), uuid.New(), uuid.New(), SourceOnline)
	assert.ErrorIs(t, err, ErrTokenExistsForAppointment)
	assert.Len(t, repo.insertCalls, 1)
}

func TestNewAllocatorDefaultsAttempts(t *testing.T) {
	alloc := NewAllocator(nil, 0)
	assert.Equal(t, DefaultAllocatorAttempts, alloc.attempts)
}
