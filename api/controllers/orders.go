package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/api/middleware"
	"github.com/petalroute/petalroute-backend/api/responses"
	"github.com/petalroute/petalroute-backend/api/validators"
	"github.com/petalroute/petalroute-backend/internal/ledger"
	internalorders "github.com/petalroute/petalroute-backend/internal/orders"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

type createOrderRequest struct {
	Type              string  `json:"type" validate:"required,oneof=merchant_transfer customer_purchase"`
	ReceiverAccountID string  `json:"receiver_account_id" validate:"required,uuid"`
	ProductType       string  `json:"product_type" validate:"required,max=100"`
	ProductName       string  `json:"product_name" validate:"required,max=200"`
	UnitPrice         int64   `json:"unit_price" validate:"required,gt=0"`
	Quantity          int     `json:"quantity" validate:"required,gt=0"`
	AdditionalFee     int64   `json:"additional_fee" validate:"gte=0"`
	FeeReason         *string `json:"fee_reason,omitempty"`
	Discount          int64   `json:"discount" validate:"gte=0"`
	HasReferrer       bool    `json:"has_referrer"`
}

type editOrderRequest struct {
	ProductType   *string `json:"product_type,omitempty" validate:"omitempty,max=100"`
	ProductName   *string `json:"product_name,omitempty" validate:"omitempty,max=200"`
	UnitPrice     *int64  `json:"unit_price,omitempty" validate:"omitempty,gt=0"`
	Quantity      *int    `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	AdditionalFee *int64  `json:"additional_fee,omitempty" validate:"omitempty,gte=0"`
	FeeReason     *string `json:"fee_reason,omitempty"`
}

// OrderCreate submits a new order on behalf of the authenticated actor. The
// paying side is always taken from the token, never the body.
func OrderCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}
		receiverID, err := uuid.Parse(req.ReceiverAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receiver account id"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		input := internalorders.CreateOrderInput{
			Type:              orderType,
			ReceiverAccountID: receiverID,
			ProductType:       req.ProductType,
			ProductName:       req.ProductName,
			UnitPrice:         req.UnitPrice,
			Quantity:          req.Quantity,
			AdditionalFee:     req.AdditionalFee,
			FeeReason:         req.FeeReason,
			Discount:          req.Discount,
			HasReferrer:       req.HasReferrer,
		}

		switch orderType {
		case enums.OrderTypeMerchantTransfer:
			if actor.MerchantID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant account required"))
				return
			}
			input.SenderAccountID = actor.MerchantID
		case enums.OrderTypeCustomerPurchase:
			if actor.CustomerKey == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer identity required"))
				return
			}
			input.CustomerKey = actor.CustomerKey
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderList returns the actor's order page; operators see everything.
func OrderList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.ListOrdersInput{
			Actor:  middleware.ActorFromContext(r.Context()),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			orderType, err := enums.ParseOrderType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter"))
				return
			}
			input.Type = &orderType
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderDetail returns one order the actor may view.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderTransition applies one lifecycle action. The route decides the action,
// the service decides whether this actor in this state may take it.
func OrderTransition(svc internalorders.Service, action enums.TransitionAction, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			Action:  action,
			Actor:   middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderEdit reconciles product and fee changes on an in-flight transfer order.
func OrderEdit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req editOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Edit(r.Context(), internalorders.EditOrderInput{
			OrderID:       orderID,
			Actor:         middleware.ActorFromContext(r.Context()),
			ProductType:   req.ProductType,
			ProductName:   req.ProductName,
			UnitPrice:     req.UnitPrice,
			Quantity:      req.Quantity,
			AdditionalFee: req.AdditionalFee,
			FeeReason:     req.FeeReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderLedgerEntries returns the ledger trail behind one order.
func OrderLedgerEntries(ordersSvc internalorders.Service, ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// visibility piggybacks on order access
		if _, err := ordersSvc.Get(r.Context(), orderID, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := ledgerSvc.EntriesForOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
