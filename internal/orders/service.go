package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pizzeria-platform/internal/auth"
	"pizzeria-platform/internal/config"
	"pizzeria-platform/internal/logger"
	"pizzeria-platform/internal/models"
	"pizzeria-platform/internal/payment"
	"pizzeria-platform/internal/pricing"
	"pizzeria-platform/internal/ratelimit"
)

const placeOrderEndpoint = "place-order"

// Store is the persistence surface the service depends on.
type Store interface {
	CurrentOrganization(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	FirstActiveOrganization(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
	CreateMembership(ctx context.Context, m *models.Membership) error
	OrderHeader(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	RecordPayment(ctx context.Context, orgID, orderID uuid.UUID, authorizationID string, amountMinor int64, currency string) error
}

// CatalogLoader fetches the tenant-scoped catalog subset for one request.
type CatalogLoader interface {
	Load(ctx context.Context, orgID uuid.UUID, items []models.ProposedItem) (*models.CatalogSnapshot, error)
}

// Limiter is the per-tenant admission control collaborator.
type Limiter interface {
	Check(ctx context.Context, orgID uuid.UUID, endpoint string, maxRequests int, window time.Duration) (ratelimit.Decision, error)
}

// Authorizer opens card-payment authorizations.
type Authorizer interface {
	Authorize(ctx context.Context, req payment.AuthRequest) (*payment.Authorization, error)
	MinimumAmountMinor() int64
}

// NumberGenerator assigns day-scoped order numbers.
type NumberGenerator interface {
	Next(ctx context.Context, orgID uuid.UUID, day time.Time) (string, error)
}

// Notifier fans order events out to push-notification subscribers.
// Implementations are fire-and-forget and must never fail the request.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order)
	OrderUpdated(ctx context.Context, order *models.Order)
}

// Service orchestrates order placement: tenant resolution, membership,
// admission control, price reconciliation, persistence and payment.
type Service struct {
	store     Store
	catalog   CatalogLoader
	limiter   Limiter
	sequence  NumberGenerator
	payments  Authorizer
	notifier  Notifier
	logger    *logger.Logger
	rateLimit config.RateLimitConfig
	currency  string
	now       func() time.Time
}

// NewService wires the order service.
func NewService(store Store, catalog CatalogLoader, limiter Limiter, sequence NumberGenerator,
	payments Authorizer, notifier Notifier, log *logger.Logger,
	rateLimit config.RateLimitConfig, currency string) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		limiter:   limiter,
		sequence:  sequence,
		payments:  payments,
		notifier:  notifier,
		logger:    log,
		rateLimit: rateLimit,
		currency:  currency,
		now:       time.Now,
	}
}

// PlaceOrder handles one placement or staff edit request end to end.
func (s *Service) PlaceOrder(ctx context.Context, caller *auth.Identity, req *models.PlaceOrderRequest, requestID string) (*models.PlaceOrderResponse, error) {
	if caller == nil {
		return nil, errAuth(nil)
	}

	if err := req.Validate(); err != nil {
		return nil, errValidation(err.Error())
	}

	orgID, err := s.resolveOrganization(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	membership, err := s.ensureMembership(ctx, orgID, caller)
	if err != nil {
		return nil, err
	}
	isStaff := membership.Role.IsStaff()

	decision, err := s.limiter.Check(ctx, orgID, placeOrderEndpoint,
		s.rateLimit.MaxRequests, time.Duration(s.rateLimit.WindowMinutes)*time.Minute)
	if err != nil {
		return nil, errOrder(fmt.Errorf("rate limit check: %w", err))
	}
	if !decision.Allowed {
		return nil, errRateLimited(decision, s.now())
	}

	snapshot, err := s.catalog.Load(ctx, orgID, req.Items)
	if err != nil {
		return nil, errOrder(err)
	}

	result := pricing.Reconcile(snapshot, req.Items)
	if len(result.InvalidItems) > 0 {
		return nil, errValidation(fmt.Sprintf("item %d references an unknown menu item or ingredient", result.InvalidItems[0]))
	}
	if result.Corrected {
		s.logger.Info("price_corrected", "Client-sent prices disagreed with catalog, using server values", requestID, map[string]interface{}{
			"organization_id": orgID.String(),
		})
	}

	order := s.buildOrder(orgID, caller, req, membership, result)

	if req.IsUpdate() {
		err = s.applyUpdate(ctx, order, *req.OrderID, orgID, isStaff, req)
	} else {
		err = s.applyCreate(ctx, order, orgID)
	}
	if err != nil {
		return nil, err
	}

	resp := &models.PlaceOrderResponse{
		Success:     true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
		Status:      string(order.Status),
		Corrected:   result.Corrected,
	}

	// The order exists from this point on, so subscribers hear about it even
	// when payment authorization fails below.
	if req.IsUpdate() {
		s.notifier.OrderUpdated(ctx, order)
	} else {
		s.notifier.OrderPlaced(ctx, order)
	}

	if order.PaymentMethod == models.PaymentCard && !isStaff {
		authorization, err := s.authorizePayment(ctx, order, requestID)
		if err != nil {
			// The order is already persisted and stays pending/unpaid; the
			// caller retries payment separately, not the whole placement.
			return nil, err
		}
		resp.PaymentContinuationToken = authorization.ClientContinuationToken
		resp.AuthorizationID = authorization.AuthorizationID
	}

	return resp, nil
}

// resolveOrganization picks the effective tenant: explicit request field,
// then the caller's current organization preference, then the first active
// membership.
func (s *Service) resolveOrganization(ctx context.Context, caller *auth.Identity, req *models.PlaceOrderRequest) (uuid.UUID, error) {
	if req.OrganizationID != nil {
		return *req.OrganizationID, nil
	}

	current, err := s.store.CurrentOrganization(ctx, caller.UserID)
	if err != nil {
		return uuid.Nil, errOrder(err)
	}
	if current != nil {
		return *current, nil
	}

	first, err := s.store.FirstActiveOrganization(ctx, caller.UserID)
	if err != nil {
		return uuid.Nil, errOrder(err)
	}
	if first != nil {
		return *first, nil
	}

	return uuid.Nil, errTenantUnresolved()
}

// ensureMembership verifies active membership, provisioning a record with a
// default role when none exists yet.
func (s *Service) ensureMembership(ctx context.Context, orgID uuid.UUID, caller *auth.Identity) (*models.Membership, error) {
	membership, err := s.store.Membership(ctx, orgID, caller.UserID)
	if err != nil {
		return nil, errOrder(err)
	}

	if membership == nil {
		membership = &models.Membership{
			OrganizationID: orgID,
			UserID:         caller.UserID,
			Role:           defaultRole(caller.LegacyRoleHint),
			Active:         true,
		}
		if err := s.store.CreateMembership(ctx, membership); err != nil {
			return nil, errOrder(err)
		}
		return membership, nil
	}

	if !membership.Active {
		return nil, errMembership("membership is not active")
	}
	return membership, nil
}

// defaultRole maps a legacy token role hint onto a membership role,
// defaulting to the lowest-privilege customer role.
func defaultRole(hint string) models.Role {
	switch models.Role(hint) {
	case models.RoleOwner, models.RoleManager, models.RoleKitchen, models.RoleDelivery:
		return models.Role(hint)
	}
	return models.RoleCustomer
}

func (s *Service) buildOrder(orgID uuid.UUID, caller *auth.Identity, req *models.PlaceOrderRequest,
	membership *models.Membership, result *pricing.Result) *models.Order {

	isStaff := membership.Role.IsStaff()

	order := &models.Order{
		OrganizationID: orgID,
		Type:           models.OrderType(req.OrderType),
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
		Address:        req.Address,
		City:           req.City,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		PaymentMethod:  models.PaymentMethod(req.PaymentMethod),
		Note:           req.Note,
		ScheduledSlot:  req.ScheduledSlot,
		Items:          result.Items,
	}

	// Staff place orders on behalf of walk-in customers; only non-staff
	// callers are self-attributed.
	if isStaff {
		order.CashierCustomerID = req.CashierCustomerID
	} else {
		userID := caller.UserID
		order.CustomerID = &userID
	}

	// Subtotal is always the sum of reconciled item subtotals; delivery fee
	// and discount are trusted as sent.
	order.Subtotal = result.Subtotal()
	order.DeliveryFee = req.DeliveryFee
	order.Discount = req.Discount
	total, _ := decimal.NewFromFloat(order.Subtotal).
		Add(decimal.NewFromFloat(order.DeliveryFee)).
		Sub(decimal.NewFromFloat(order.Discount)).
		Round(2).Float64()
	order.Total = total

	order.Status = initialStatus(req, isStaff)

	return order
}

// initialStatus is confirmed for cash, pending otherwise; staff may supply
// an explicit status overriding the default.
func initialStatus(req *models.PlaceOrderRequest, isStaff bool) models.OrderStatus {
	if isStaff && req.Status != "" {
		return models.OrderStatus(req.Status)
	}
	if models.PaymentMethod(req.PaymentMethod) == models.PaymentCash {
		return models.StatusConfirmed
	}
	return models.StatusPending
}

func (s *Service) applyCreate(ctx context.Context, order *models.Order, orgID uuid.UUID) error {
	// Scheduled orders carry the slot date's counter, not the creation date's.
	day := s.now()
	if order.ScheduledSlot != nil {
		day = *order.ScheduledSlot
	}

	number, err := s.sequence.Next(ctx, orgID, day)
	if err != nil {
		return errOrder(err)
	}
	order.OrderNumber = number

	if err := s.store.Create(ctx, order); err != nil {
		return errOrder(err)
	}
	return nil
}

func (s *Service) applyUpdate(ctx context.Context, order *models.Order, orderID, orgID uuid.UUID, isStaff bool, req *models.PlaceOrderRequest) error {
	if !isStaff {
		return errMembership("only staff may edit orders")
	}

	existing, err := s.store.OrderHeader(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return errValidation("order does not exist")
		}
		return errOrder(err)
	}
	if existing.OrganizationID != orgID {
		// Cross-tenant edit attempt is a hard failure, never a silent no-op.
		return errMembership("order belongs to another organization")
	}

	order.ID = existing.ID
	order.OrderNumber = existing.OrderNumber
	order.Paid = existing.Paid
	if req.Status == "" {
		order.Status = existing.Status
	} else {
		order.Status = models.OrderStatus(req.Status)
	}

	if err := s.store.Update(ctx, order); err != nil {
		return errOrder(err)
	}
	return nil
}

func (s *Service) authorizePayment(ctx context.Context, order *models.Order, requestID string) (*payment.Authorization, error) {
	amountMinor := int64(math.Round(order.Total * 100))
	if amountMinor < s.payments.MinimumAmountMinor() {
		return nil, errPayment("order total is below the minimum payable amount", nil)
	}

	authorization, err := s.payments.Authorize(ctx, payment.AuthRequest{
		AmountMinor:  amountMinor,
		Currency:     s.currency,
		ReceiptEmail: order.CustomerEmail,
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
		},
	})
	if err != nil {
		return nil, errPayment("payment authorization failed", err)
	}

	if err := s.store.RecordPayment(ctx, order.OrganizationID, order.ID,
		authorization.AuthorizationID, amountMinor, s.currency); err != nil {
		// Audit row only; the authorization itself succeeded.
		s.logger.Error("payment_audit_failed", "Failed to record payment transaction", requestID, err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
	}

	return authorization, nil
}
