package controllers

import (
	"net/http"

	"github.com/petalroute/petalroute-backend/api/middleware"
	"github.com/petalroute/petalroute-backend/api/responses"
	"github.com/petalroute/petalroute-backend/api/validators"
	"github.com/petalroute/petalroute-backend/internal/coupons"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
)

// CouponBalance returns the customer's usable coupon value.
func CouponBalance(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerKey, ok := middleware.CustomerKeyFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer identity required"))
			return
		}

		balance, err := svc.Balance(r.Context(), customerKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"balance": balance})
	}
}

// CouponList returns the customer's unexpired unused grants, soonest expiry
// first.
func CouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerKey, ok := middleware.CustomerKeyFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer identity required"))
			return
		}

		grants, err := svc.ListActive(r.Context(), customerKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, grants)
	}
}

// CouponGrant issues coupon value to a customer. Operator only.
func CouponGrant(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	type grantRequest struct {
		CustomerKey string `json:"customer_key" validate:"required,max=100"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		GrantType   string `json:"grant_type" validate:"required,oneof=purchase referral"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req grantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grantType, err := enums.ParseGrantType(req.GrantType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid grant type"))
			return
		}

		grant, err := svc.Grant(r.Context(), coupons.GrantInput{
			CustomerKey: req.CustomerKey,
			Amount:      req.Amount,
			GrantType:   grantType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, grant)
	}
}
