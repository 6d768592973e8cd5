package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/petalroute/petalroute-backend/api/middleware"
	"github.com/petalroute/petalroute-backend/api/responses"
	"github.com/petalroute/petalroute-backend/api/validators"
	"github.com/petalroute/petalroute-backend/internal/ledger"
	"github.com/petalroute/petalroute-backend/internal/merchants"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

type registerMerchantRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Phone          string `json:"phone" validate:"required,max=20"`
	CommissionRate string `json:"commission_rate" validate:"required"`
}

type setMerchantStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// MerchantRegister onboards a merchant account. Operator only.
func MerchantRegister(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerMerchantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := decimal.NewFromString(req.CommissionRate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commission rate"))
			return
		}

		merchant, err := svc.Register(r.Context(), merchants.RegisterInput{
			Name:           req.Name,
			Phone:          req.Phone,
			CommissionRate: rate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, merchant)
	}
}

// MerchantProfile returns the authenticated merchant's own account.
func MerchantProfile(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant account required"))
			return
		}

		merchant, err := svc.Get(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, merchant)
	}
}

// MerchantBalance returns the merchant's current points balance.
func MerchantBalance(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant account required"))
			return
		}

		balance, err := svc.Balance(r.Context(), merchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"points_balance": balance})
	}
}

// MerchantLedger pages through the merchant's own ledger entries.
func MerchantLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, ok := middleware.MerchantIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant account required"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.ListInput{
			AccountID: merchantID,
			Limit:     limit,
			Cursor:    strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("entry_type")); raw != "" {
			entryType, err := enums.ParseLedgerEntryType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry type filter"))
				return
			}
			input.EntryType = &entryType
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MerchantTopUp credits the merchant's points balance. Operator only; the
// marketplace has no self-serve payment rail for balance top-ups.
func MerchantTopUp(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	type topUpRequest struct {
		Amount int64   `json:"amount" validate:"required,gt=0"`
		Memo   *string `json:"memo,omitempty" validate:"omitempty,max=500"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := parseMerchantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req topUpRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Apply(r.Context(), ledger.Change{
			AccountID: merchantID,
			EntryType: enums.LedgerEntryTypeCharge,
			Amount:    req.Amount,
			Memo:      req.Memo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// MerchantSetStatus activates or suspends a merchant account. Operator only.
func MerchantSetStatus(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := parseMerchantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setMerchantStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseMerchantStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant status"))
			return
		}

		if err := svc.SetStatus(r.Context(), merchantID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}

func parseMerchantID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "merchantId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant id is required")
	}
	merchantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id")
	}
	return merchantID, nil
}
