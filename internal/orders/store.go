package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pizzeria-platform/internal/database"
	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
)

// ErrOrderNotFound is returned when the target order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// conn is the subset of database.DB the store uses; satisfied by *database.DB.
type conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) error
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// rowQuerier runs single-row statements; satisfied by both the pool wrapper
// and an open transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresStore persists the order aggregate and resolves caller identity
// rows. Every query carries an explicit organization predicate; ownership is
// never delegated to an ambient security context.
type PostgresStore struct {
	db     conn
	logger *logger.Logger
}

// NewPostgresStore creates the store.
func NewPostgresStore(db *database.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

// CurrentOrganization returns the organization the user's profile points at,
// or nil when the profile has none.
func (s *PostgresStore) CurrentOrganization(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var orgID *uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT current_organization_id FROM profiles WHERE id = $1`,
		userID).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return orgID, nil
}

// FirstActiveOrganization returns the oldest active membership's
// organization, or nil when the user belongs to none.
func (s *PostgresStore) FirstActiveOrganization(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var orgID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT om.organization_id
		 FROM organization_members om
		 JOIN organizations o ON o.id = om.organization_id
		 WHERE om.user_id = $1 AND om.active AND o.active
		 ORDER BY om.created_at ASC
		 LIMIT 1`,
		userID).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	return &orgID, nil
}

// Membership returns the user's membership in the organization, or nil when
// no record exists.
func (s *PostgresStore) Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	m := &models.Membership{}
	err := s.db.QueryRow(ctx,
		`SELECT organization_id, user_id, role, active
		 FROM organization_members
		 WHERE organization_id = $1 AND user_id = $2`,
		orgID, userID).Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query membership: %w", err)
	}
	return m, nil
}

// CreateMembership provisions a membership record.
func (s *PostgresStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	err := s.db.Exec(ctx,
		`INSERT INTO organization_members (organization_id, user_id, role, active)
		 VALUES ($1, $2, $3, $4)`,
		m.OrganizationID, m.UserID, m.Role, m.Active)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// OrderHeader fetches the fields needed to authorize an edit. The ownership
// comparison happens in the service; all subsequent writes are tenant-scoped.
func (s *PostgresStore) OrderHeader(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	o := &models.Order{}
	err := s.db.QueryRow(ctx,
		`SELECT id, organization_id, order_number, status, paid, created_at
		 FROM orders WHERE id = $1`,
		orderID).Scan(&o.ID, &o.OrganizationID, &o.OrderNumber, &o.Status, &o.Paid, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order header: %w", err)
	}
	return o, nil
}

// Create persists a new order aggregate: header first, then all line items.
// When item insertion fails after the header was written, the header is
// deleted rather than left orphaned.
func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO orders (organization_id, order_number, customer_id, cashier_customer_id,
			status, type, customer_name, customer_phone, customer_email, address, city,
			latitude, longitude, subtotal, delivery_fee, discount, total,
			payment_method, paid, note, scheduled_slot)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING id, created_at, updated_at`,
		order.OrganizationID, order.OrderNumber, order.CustomerID, order.CashierCustomerID,
		order.Status, order.Type, order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.Address, order.City, order.Latitude, order.Longitude,
		order.Subtotal, order.DeliveryFee, order.Discount, order.Total,
		order.PaymentMethod, order.Paid, order.Note, order.ScheduledSlot).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order header: %w", err)
	}

	if err := s.insertItems(ctx, s.db, order); err != nil {
		s.compensateHeader(ctx, order)
		return err
	}

	return nil
}

// Update overwrites the order header and replaces the entire item set inside
// one transaction, so readers never observe a partially replaced order.
// Partial item updates are not supported. The order number is preserved.
func (s *PostgresStore) Update(ctx context.Context, order *models.Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order update: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET
			customer_id = $3, cashier_customer_id = $4, status = $5, type = $6,
			customer_name = $7, customer_phone = $8, customer_email = $9,
			address = $10, city = $11, latitude = $12, longitude = $13,
			subtotal = $14, delivery_fee = $15, discount = $16, total = $17,
			payment_method = $18, note = $19, scheduled_slot = $20, updated_at = NOW()
		 WHERE id = $1 AND organization_id = $2`,
		order.ID, order.OrganizationID,
		order.CustomerID, order.CashierCustomerID, order.Status, order.Type,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.Address, order.City, order.Latitude, order.Longitude,
		order.Subtotal, order.DeliveryFee, order.Discount, order.Total,
		order.PaymentMethod, order.Note, order.ScheduledSlot)
	if err != nil {
		return fmt.Errorf("update order header: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND organization_id = $2`,
		order.ID, order.OrganizationID)
	if err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}

	if err := s.insertItems(ctx, tx, order); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) insertItems(ctx context.Context, q rowQuerier, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]

		var variants []byte
		if item.Variants != nil {
			encoded, err := json.Marshal(item.Variants)
			if err != nil {
				return fmt.Errorf("marshal item variants: %w", err)
			}
			variants = encoded
		}

		err := q.QueryRow(ctx,
			`INSERT INTO order_items (organization_id, order_id, menu_item_id, name, quantity, unit_price, subtotal, note, variants)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			order.OrganizationID, order.ID, item.MenuItemID, item.Name,
			item.Quantity, item.UnitPrice, item.Subtotal, item.Note, variants).
			Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
		item.OrderID = order.ID
	}
	return nil
}

// compensateHeader removes a partially written aggregate so readers never
// observe an order without its items.
func (s *PostgresStore) compensateHeader(ctx context.Context, order *models.Order) {
	if err := s.db.Exec(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND organization_id = $2`,
		order.ID, order.OrganizationID); err != nil {
		s.logger.Error("order_rollback_failed", "Failed to delete partial order items", "", err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
	}
	if err := s.db.Exec(ctx,
		`DELETE FROM orders WHERE id = $1 AND organization_id = $2`,
		order.ID, order.OrganizationID); err != nil {
		s.logger.Error("order_rollback_failed", "Failed to delete orphaned order header", "", err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
	}
}

// RecordPayment writes the audit row for an opened card authorization.
func (s *PostgresStore) RecordPayment(ctx context.Context, orgID, orderID uuid.UUID, authorizationID string, amountMinor int64, currency string) error {
	err := s.db.Exec(ctx,
		`INSERT INTO payment_transactions (organization_id, order_id, authorization_id, amount_minor, currency, status)
		 VALUES ($1, $2, $3, $4, $5, 'authorized')`,
		orgID, orderID, authorizationID, amountMinor, currency)
	if err != nil {
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}
