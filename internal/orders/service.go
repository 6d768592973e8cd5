package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/petalroute/petalroute-backend/internal/coupons"
	"github.com/petalroute/petalroute-backend/internal/ledger"
	"github.com/petalroute/petalroute-backend/internal/pricing"
	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ledgerApplier interface {
	ApplyInTx(ctx context.Context, tx *gorm.DB, change ledger.Change) (*models.LedgerEntry, error)
}

type couponResolver interface {
	ConsumeInTx(ctx context.Context, tx *gorm.DB, input coupons.ConsumeInput) (*coupons.ConsumeResult, error)
	GrantInTx(ctx context.Context, tx *gorm.DB, input coupons.GrantInput) (*models.ValueGrant, error)
}

type accountReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.MerchantAccount, error)
}

// Service drives the order lifecycle: creation under the two pricing regimes,
// state transitions, and in-flight edits with ledger reconciliation.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	List(ctx context.Context, input ListOrdersInput) (*ListOrdersResult, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	Edit(ctx context.Context, input EditOrderInput) (*EditOrderResult, error)
}

// ServiceParams wires the order service dependencies.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Calculator *pricing.Calculator
	Ledger     ledgerApplier
	Coupons    couponResolver
	Accounts   accountReader
	Now        func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	calc     *pricing.Calculator
	ledger   ledgerApplier
	coupons  couponResolver
	accounts accountReader
	now      func() time.Time
}

// NewService builds the order service with the required collaborators.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger applier required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon resolver required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account reader required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		calc:     params.Calculator,
		ledger:   params.Ledger,
		coupons:  params.Coupons,
		accounts: params.Accounts,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	switch input.Type {
	case enums.OrderTypeMerchantTransfer:
		return s.createMerchantTransfer(ctx, input)
	case enums.OrderTypeCustomerPurchase:
		return s.createCustomerPurchase(ctx, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", input.Type))
	}
}

func (s *service) createMerchantTransfer(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.SenderAccountID == nil || *input.SenderAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender merchant required")
	}
	if input.ReceiverAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver merchant required")
	}
	if *input.SenderAccountID == input.ReceiverAccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and receiver must differ")
	}
	if input.Discount != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant transfers cannot use coupon discounts")
	}

	receiver, err := s.loadActiveAccount(ctx, input.ReceiverAccountID, "receiver")
	if err != nil {
		return nil, err
	}

	quote, err := s.calc.Quote(pricing.QuoteInput{
		Mode:           pricing.ModeMerchantTransfer,
		UnitPrice:      input.UnitPrice,
		Quantity:       input.Quantity,
		AdditionalFee:  input.AdditionalFee,
		CommissionRate: receiver.CommissionRate,
	})
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(input, quote)
	order.SenderAccountID = input.SenderAccountID
	order.CustomerKey = nil

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		memo := "order payment"
		_, err := s.ledger.ApplyInTx(ctx, tx, ledger.Change{
			AccountID: *input.SenderAccountID,
			EntryType: enums.LedgerEntryTypePayment,
			Amount:    quote.Total,
			OrderID:   &order.ID,
			Memo:      &memo,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) createCustomerPurchase(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.CustomerKey == nil || *input.CustomerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer key required")
	}
	if input.ReceiverAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver merchant required")
	}
	if input.Discount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}

	if _, err := s.loadActiveAccount(ctx, input.ReceiverAccountID, "receiver"); err != nil {
		return nil, err
	}

	quote, err := s.calc.Quote(pricing.QuoteInput{
		Mode:            pricing.ModeCustomerPurchase,
		UnitPrice:       input.UnitPrice,
		Quantity:        input.Quantity,
		AdditionalFee:   input.AdditionalFee,
		DiscountApplied: input.Discount > 0,
		HasReferrer:     input.HasReferrer,
	})
	if err != nil {
		return nil, err
	}
	if input.Discount > quote.Total {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order total")
	}

	order := s.buildOrder(input, quote)
	order.SenderAccountID = nil
	order.CustomerKey = input.CustomerKey
	order.PointsUsed = input.Discount

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if input.Discount > 0 {
			_, err := s.coupons.ConsumeInTx(ctx, tx, coupons.ConsumeInput{
				CustomerKey: *input.CustomerKey,
				Amount:      input.Discount,
				OrderID:     order.ID,
			})
			return err
		}
		if quote.PointBack > 0 {
			grantType := enums.GrantTypePurchase
			if input.HasReferrer {
				grantType = enums.GrantTypeReferral
			}
			_, err := s.coupons.GrantInTx(ctx, tx, coupons.GrantInput{
				CustomerKey: *input.CustomerKey,
				Amount:      quote.PointBack,
				GrantType:   grantType,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) buildOrder(input CreateOrderInput, quote *pricing.Quote) *models.Order {
	receiverID := input.ReceiverAccountID
	return &models.Order{
		Type:              input.Type,
		ReceiverAccountID: &receiverID,
		Status:            enums.OrderStatusPending,
		ProductType:       input.ProductType,
		ProductName:       input.ProductName,
		UnitPrice:         input.UnitPrice,
		Quantity:          input.Quantity,
		SubtotalAmount:    quote.Subtotal,
		AdditionalFee:     input.AdditionalFee,
		FeeReason:         input.FeeReason,
		CommissionAmount:  quote.Commission,
		TotalAmount:       quote.Total,
	}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actorMayView(order, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to actor")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListOrdersInput) (*ListOrdersResult, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *input.Status))
	}
	if input.Type != nil && !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", *input.Type))
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := ListQuery{
		Status: input.Status,
		Type:   input.Type,
		Limit:  input.Limit,
		Cursor: cursor,
	}
	switch input.Actor.Role {
	case enums.ActorRoleMerchant:
		if input.Actor.MerchantID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing")
		}
		query.MerchantID = input.Actor.MerchantID
	case enums.ActorRoleCustomer:
		if input.Actor.CustomerKey == nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer context missing")
		}
		query.CustomerKey = input.Actor.CustomerKey
	case enums.ActorRoleOperator:
		// operators see everything
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}

	ordersPage, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &ListOrdersResult{Orders: ordersPage}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rule, ok := transitionRules[input.Action]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transition action %q", input.Action))
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if !rule.permits(order, input.Actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor may not perform this transition")
	}
	if !rule.allowsFrom(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot %s an order in status %s", input.Action, order.Status))
	}

	now := s.now()
	stamps := transitionStamps(rule.to, now)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// re-read inside the transaction: an edit may have committed since the
		// permit check, and the refund must repay what the order costs now
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if !rule.allowsFrom(current.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, retry")
		}

		moved, err := repo.UpdateStatusCAS(ctx, current.ID, current.Status, rule.to, current.TotalAmount, stamps)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, retry")
		}

		// a terminated merchant transfer returns the full charge to the sender
		if needsRefund(current, rule.to) {
			memo := fmt.Sprintf("order %s refund", rule.to)
			if _, err := s.ledger.ApplyInTx(ctx, tx, ledger.Change{
				AccountID: *current.SenderAccountID,
				EntryType: enums.LedgerEntryTypeRefund,
				Amount:    current.TotalAmount,
				OrderID:   &current.ID,
				Memo:      &memo,
			}); err != nil {
				return err
			}
		}

		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = rule.to
	applyStamp(order, rule.to, now)
	return order, nil
}

func needsRefund(order *models.Order, to enums.OrderStatus) bool {
	if order.Type != enums.OrderTypeMerchantTransfer || order.SenderAccountID == nil {
		return false
	}
	return to == enums.OrderStatusCancelled || to == enums.OrderStatusRejected
}

func applyStamp(order *models.Order, to enums.OrderStatus, now time.Time) {
	switch to {
	case enums.OrderStatusAccepted:
		order.AcceptedAt = &now
	case enums.OrderStatusInDelivery:
		order.DeliveryStartedAt = &now
	case enums.OrderStatusCompleted:
		order.CompletedAt = &now
	case enums.OrderStatusRejected:
		order.RejectedAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}
}

// Edit reconciles price changes on an in-flight merchant transfer. The ledger
// effect and the order update commit together; a failed debit rejects the
// whole edit.
func (s *service) Edit(ctx context.Context, input EditOrderInput) (*EditOrderResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Type != enums.OrderTypeMerchantTransfer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only merchant transfers can be edited")
	}
	if !editableStatus(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot edit an order in status %s", order.Status))
	}
	if !actorOwnsSenderSide(order, input.Actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the sending party may edit the order")
	}

	edited := *order
	if input.ProductType != nil {
		edited.ProductType = *input.ProductType
	}
	if input.ProductName != nil {
		edited.ProductName = *input.ProductName
	}
	if input.UnitPrice != nil {
		edited.UnitPrice = *input.UnitPrice
	}
	if input.Quantity != nil {
		edited.Quantity = *input.Quantity
	}
	if input.AdditionalFee != nil {
		edited.AdditionalFee = *input.AdditionalFee
	}
	if input.FeeReason != nil {
		edited.FeeReason = input.FeeReason
	}

	if order.ReceiverAccountID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no receiver assigned")
	}
	receiver, err := s.loadActiveAccount(ctx, *order.ReceiverAccountID, "receiver")
	if err != nil {
		return nil, err
	}

	quote, err := s.calc.Quote(pricing.QuoteInput{
		Mode:           pricing.ModeMerchantTransfer,
		UnitPrice:      edited.UnitPrice,
		Quantity:       edited.Quantity,
		AdditionalFee:  edited.AdditionalFee,
		CommissionRate: receiver.CommissionRate,
	})
	if err != nil {
		return nil, err
	}

	delta := quote.Total - order.TotalAmount

	updates := map[string]any{
		"product_type":      edited.ProductType,
		"product_name":      edited.ProductName,
		"unit_price":        edited.UnitPrice,
		"quantity":          edited.Quantity,
		"subtotal_amount":   quote.Subtotal,
		"additional_fee":    edited.AdditionalFee,
		"fee_reason":        edited.FeeReason,
		"commission_amount": quote.Commission,
		"total_amount":      quote.Total,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.UpdateGuarded(ctx, order.ID, order.Status, order.TotalAmount, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply order edit")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently, retry")
		}

		if delta == 0 {
			return nil
		}

		change := ledger.Change{
			AccountID: *order.SenderAccountID,
			OrderID:   &order.ID,
		}
		memo := "order edit adjustment"
		change.Memo = &memo
		if delta > 0 {
			change.EntryType = enums.LedgerEntryTypePayment
			change.Amount = delta
		} else {
			change.EntryType = enums.LedgerEntryTypeRefund
			change.Amount = -delta
		}
		_, err = s.ledger.ApplyInTx(ctx, tx, change)
		return err
	})
	if err != nil {
		return nil, err
	}

	edited.SubtotalAmount = quote.Subtotal
	edited.CommissionAmount = quote.Commission
	edited.TotalAmount = quote.Total

	return &EditOrderResult{
		Order:           &edited,
		BalanceAdjusted: delta != 0,
		Delta:           delta,
	}, nil
}

func editableStatus(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusAccepted
}

func actorOwnsSenderSide(order *models.Order, actor Actor) bool {
	if actor.Role == enums.ActorRoleOperator {
		return true
	}
	return actor.Role == enums.ActorRoleMerchant &&
		actor.MerchantID != nil &&
		order.SenderAccountID != nil &&
		*actor.MerchantID == *order.SenderAccountID
}

func actorMayView(order *models.Order, actor Actor) bool {
	switch actor.Role {
	case enums.ActorRoleOperator:
		return true
	case enums.ActorRoleMerchant:
		if actor.MerchantID == nil {
			return false
		}
		if order.SenderAccountID != nil && *order.SenderAccountID == *actor.MerchantID {
			return true
		}
		return order.ReceiverAccountID != nil && *order.ReceiverAccountID == *actor.MerchantID
	case enums.ActorRoleCustomer:
		return actor.CustomerKey != nil &&
			order.CustomerKey != nil &&
			*order.CustomerKey == *actor.CustomerKey
	}
	return false
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadActiveAccount(ctx context.Context, id uuid.UUID, side string) (*models.MerchantAccount, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s merchant not found", side))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("load %s merchant", side))
	}
	if account.Status != enums.MerchantStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s merchant is not active", side))
	}
	return account, nil
}
