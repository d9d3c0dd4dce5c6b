package storage

import (
	"context"
	"net/http"

	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/apperror"
)

var (
	ErrUnavailable = apperror.New(http.StatusServiceUnavailable, "record store unavailable")
	ErrWriteFailed = apperror.New(http.StatusInternalServerError, "record store write failed")
)

// Collection is a named, ordered list of records that is read and written as a unit.
type Collection[T any] interface {
	// Name identifies the collection (e.g. "bookings").
	Name() string

	// Load returns a private copy of every record in storage order.
	// Returns ErrUnavailable when the collection cannot be read or decoded.
	Load(ctx context.Context) ([]T, error)

	// Update runs one read-modify-write cycle. Cycles on the same collection never interleave.
	// fn receives a private copy of the records and returns the records to persist.
	// If fn returns an error nothing is written and that error is returned unchanged.
	// A done ctx aborts before the cycle starts; once started the cycle runs to completion.
	// Returns ErrUnavailable on read failure and ErrWriteFailed on write failure,
	// in which case the previous state remains the durable state.
	Update(ctx context.Context, fn func(records []T) ([]T, error)) error
}

// Mutate is Update with a typed result computed inside the critical section.
func Mutate[T, R any](ctx context.Context, c Collection[T], fn func(records []T) ([]T, R, error)) (R, error) {
	var result R
	err := c.Update(ctx, func(records []T) ([]T, error) {
		next, r, err := fn(records)
		if err != nil {
			return nil, err
		}
		result = r
		return next, nil
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

// gate is a one-slot semaphore. Unlike sync.Mutex, waiting on it can be abandoned when ctx is done.
type gate chan struct{}

func newGate() gate {
	return make(gate, 1)
}

func (g gate) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		<-g
		return err
	}
	return nil
}

func (g gate) leave() {
	<-g
}
