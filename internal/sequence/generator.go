package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pizzeria-platform/internal/logger"
)

// ErrCounterExists is returned by CounterStore.Insert when a concurrent
// caller created the day's counter row first.
var ErrCounterExists = errors.New("counter row already exists")

// CounterStore persists one monotonically increasing counter per tenant per
// calendar day. Both operations must be atomic single-row primitives.
type CounterStore interface {
	// Increment bumps the existing counter row and returns the new value.
	// ok is false when no row exists yet for that day.
	Increment(ctx context.Context, orgID uuid.UUID, day time.Time) (value int, ok bool, err error)
	// Insert creates a fresh counter row starting at 1.
	Insert(ctx context.Context, orgID uuid.UUID, day time.Time) error
}

// Generator produces unique, day-scoped, human-readable order numbers under
// concurrent callers across processes. Safety comes entirely from the
// store's atomic update and unique constraint, not from any lock.
type Generator struct {
	store       CounterStore
	logger      *logger.Logger
	maxAttempts int
	baseBackoff time.Duration
}

// New creates a generator backed by the given counter store.
func New(store CounterStore, log *logger.Logger) *Generator {
	return &Generator{
		store:       store,
		logger:      log,
		maxAttempts: 5,
		baseBackoff: 5 * time.Millisecond,
	}
}

// Next assigns the next counter value for the given day and returns the
// formatted order number. The day is the scheduled-slot date for scheduled
// orders, else the creation date.
func (g *Generator) Next(ctx context.Context, orgID uuid.UUID, day time.Time) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		value, ok, err := g.store.Increment(ctx, orgID, day)
		if err != nil {
			return "", fmt.Errorf("increment daily counter: %w", err)
		}
		if ok {
			return Format(day, value), nil
		}

		err = g.store.Insert(ctx, orgID, day)
		if err == nil {
			return Format(day, 1), nil
		}
		if !errors.Is(err, ErrCounterExists) {
			return "", fmt.Errorf("insert daily counter: %w", err)
		}

		// Lost the insert race; the row exists now, so the next increment
		// succeeds. Back off only on this constraint-violation path.
		g.logger.Debug("counter_insert_race", "Concurrent caller created the counter row first, retrying", "", map[string]interface{}{
			"organization_id": orgID.String(),
			"day":             day.Format("2006-01-02"),
			"attempt":         attempt + 1,
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.baseBackoff << attempt):
		}
	}

	return "", fmt.Errorf("order number assignment did not converge after %d attempts", g.maxAttempts)
}

// Format renders an order number as YYYYMMDD-NNNN.
func Format(day time.Time, value int) string {
	return fmt.Sprintf("%s-%04d", day.Format("20060102"), value)
}
