package orders

import (
	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// Actor identifies the party issuing an order operation, resolved from the
// access token by the API layer.
type Actor struct {
	Role        enums.ActorRole
	MerchantID  *uuid.UUID
	CustomerKey *string
}

// CreateOrderInput carries everything needed to submit one order.
type CreateOrderInput struct {
	Type              enums.OrderType
	SenderAccountID   *uuid.UUID
	CustomerKey       *string
	ReceiverAccountID uuid.UUID

	ProductType   string
	ProductName   string
	UnitPrice     int64
	Quantity      int
	AdditionalFee int64
	FeeReason     *string

	// Discount requests coupon consumption on a customer purchase.
	Discount int64
	// HasReferrer bumps the point-back rate on a customer purchase.
	HasReferrer bool
}

// TransitionInput requests one lifecycle action against an order.
type TransitionInput struct {
	OrderID uuid.UUID
	Action  enums.TransitionAction
	Actor   Actor
}

// EditOrderInput changes product/fee fields on an in-flight order. Nil fields
// are left untouched.
type EditOrderInput struct {
	OrderID uuid.UUID
	Actor   Actor

	ProductType   *string
	ProductName   *string
	UnitPrice     *int64
	Quantity      *int
	AdditionalFee *int64
	FeeReason     *string
}

// EditOrderResult reports the reconciled order and the ledger effect the edit
// produced, if any.
type EditOrderResult struct {
	Order           *models.Order
	BalanceAdjusted bool
	// Delta is new total minus old total; positive means an extra debit was
	// charged, negative means a refund was issued.
	Delta int64
}

// ListOrdersInput filters an order listing for one actor.
type ListOrdersInput struct {
	Actor  Actor
	Status *enums.OrderStatus
	Type   *enums.OrderType
	Limit  int
	Cursor string
}

// ListOrdersResult is one page of orders, newest first.
type ListOrdersResult struct {
	Orders     []models.Order
	NextCursor string
}
