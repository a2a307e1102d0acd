package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeTx satisfies pgx.Tx for the statements Update issues; the embedded
// interface covers the rest.
type fakeTx struct {
	pgx.Tx

	headerRows   int64
	failInsertAt int

	inserts    int
	deleted    bool
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "DELETE FROM order_items") {
		t.deleted = true
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", t.headerRows)), nil
}

func (t *fakeTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	t.inserts++
	n := t.inserts
	return fakeRow{scan: func(dest ...any) error {
		if t.failInsertAt != 0 && n >= t.failInsertAt {
			return errors.New("connection reset")
		}
		if id, ok := dest[0].(*uuid.UUID); ok {
			*id = uuid.New()
		}
		return nil
	}}
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeConn struct {
	tx *fakeTx
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) { return c.tx, nil }

func (c *fakeConn) Exec(context.Context, string, ...interface{}) error { return nil }

func (c *fakeConn) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return fakeRow{scan: func(...any) error { return nil }}
}

func updateOrder() *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		OrderNumber:    "20250307-0001",
		Items: []models.OrderItem{
			{MenuItemID: uuid.New(), Name: "Margherita", Quantity: 1, UnitPrice: 6.50, Subtotal: 6.50},
			{MenuItemID: uuid.New(), Name: "Diavola", Quantity: 1, UnitPrice: 8.00, Subtotal: 8.00},
		},
	}
}

func TestUpdate_CommitsWhenAllItemsInsert(t *testing.T) {
	tx := &fakeTx{headerRows: 1}
	store := &PostgresStore{db: &fakeConn{tx: tx}, logger: logger.New("test")}

	err := store.Update(context.Background(), updateOrder())
	require.NoError(t, err)

	assert.True(t, tx.deleted)
	assert.Equal(t, 2, tx.inserts)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestUpdate_RollsBackWhenItemInsertFails(t *testing.T) {
	tx := &fakeTx{headerRows: 1, failInsertAt: 2}
	store := &PostgresStore{db: &fakeConn{tx: tx}, logger: logger.New("test")}

	err := store.Update(context.Background(), updateOrder())
	require.Error(t, err)

	// The whole replacement rolls back; readers never see a partial item set.
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestUpdate_UnknownOrderRollsBack(t *testing.T) {
	tx := &fakeTx{headerRows: 0}
	store := &PostgresStore{db: &fakeConn{tx: tx}, logger: logger.New("test")}

	err := store.Update(context.Background(), updateOrder())
	require.ErrorIs(t, err, ErrOrderNotFound)

	assert.False(t, tx.deleted)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}
