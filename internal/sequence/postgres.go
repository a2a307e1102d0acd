package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pizzeria-platform/internal/database"
)

const uniqueViolationCode = "23505"

// PostgresCounterStore implements CounterStore on the daily_order_counters
// table, one row per (organization, day).
type PostgresCounterStore struct {
	db *database.DB
}

// NewPostgresCounterStore creates a counter store backed by PostgreSQL.
func NewPostgresCounterStore(db *database.DB) *PostgresCounterStore {
	return &PostgresCounterStore{db: db}
}

func (s *PostgresCounterStore) Increment(ctx context.Context, orgID uuid.UUID, day time.Time) (int, bool, error) {
	var value int
	err := s.db.QueryRow(ctx,
		`UPDATE daily_order_counters
		 SET last_value = last_value + 1
		 WHERE organization_id = $1 AND day = $2
		 RETURNING last_value`,
		orgID, day.Format("2006-01-02")).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (s *PostgresCounterStore) Insert(ctx context.Context, orgID uuid.UUID, day time.Time) error {
	err := s.db.Exec(ctx,
		`INSERT INTO daily_order_counters (organization_id, day, last_value)
		 VALUES ($1, $2, 1)`,
		orgID, day.Format("2006-01-02"))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrCounterExists
	}
	return err
}
