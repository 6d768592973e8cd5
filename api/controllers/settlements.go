package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/api/middleware"
	"github.com/petalroute/petalroute-backend/api/responses"
	"github.com/petalroute/petalroute-backend/api/validators"
	"github.com/petalroute/petalroute-backend/internal/settlements"
	"github.com/petalroute/petalroute-backend/pkg/db/models"
	"github.com/petalroute/petalroute-backend/pkg/enums"
	pkgerrors "github.com/petalroute/petalroute-backend/pkg/errors"
	"github.com/petalroute/petalroute-backend/pkg/logger"
	"github.com/petalroute/petalroute-backend/pkg/pagination"
)

// SettlementList pages through settlements. Merchants are pinned to their own
// account; operators may filter by any merchant.
func SettlementList(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := settlements.ListInput{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		actor := middleware.ActorFromContext(r.Context())
		switch actor.Role {
		case enums.ActorRoleMerchant:
			if actor.MerchantID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "merchant account required"))
				return
			}
			input.MerchantID = actor.MerchantID
		case enums.ActorRoleOperator:
			if raw := strings.TrimSpace(r.URL.Query().Get("merchant_id")); raw != "" {
				merchantID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid merchant id filter"))
					return
				}
				input.MerchantID = &merchantID
			}
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "settlements are not visible to customers"))
			return
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseSettlementStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}
		if from, err := parseQueryTime(r, "period_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if from != nil {
			input.PeriodFrom = from
		}
		if until, err := parseQueryTime(r, "period_until"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if until != nil {
			input.PeriodUntil = until
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SettlementDetail returns one settlement with actor scoping.
func SettlementDetail(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settlement, err := loadScopedSettlement(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlement)
	}
}

// SettlementOrders returns the orders a settlement claimed.
func SettlementOrders(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settlement, err := loadScopedSettlement(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Orders(r.Context(), settlement.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

// SettlementProcess marks a pending settlement paid out. Operator only;
// retries are safe.
func SettlementProcess(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settlementID, err := parseSettlementID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.Process(r.Context(), settlementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlement)
	}
}

// SettlementRun triggers the batch for an explicit period, outside the weekly
// schedule. Operator only.
func SettlementRun(svc settlements.Service, logg *logger.Logger) http.HandlerFunc {
	type runRequest struct {
		PeriodStart time.Time `json:"period_start" validate:"required"`
		PeriodEnd   time.Time `json:"period_end" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RunBatch(r.Context(), settlements.Period{
			Start: req.PeriodStart,
			End:   req.PeriodEnd,
		})
		if err != nil {
			// partial failure still reports what was created
			if result != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settlement batch partially failed").
					WithDetails(map[string]any{"created": len(result.Created), "failed": result.Failed}))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func loadScopedSettlement(r *http.Request, svc settlements.Service) (*models.Settlement, error) {
	settlementID, err := parseSettlementID(r)
	if err != nil {
		return nil, err
	}

	settlement, err := svc.Get(r.Context(), settlementID)
	if err != nil {
		return nil, err
	}

	actor := middleware.ActorFromContext(r.Context())
	switch actor.Role {
	case enums.ActorRoleOperator:
	case enums.ActorRoleMerchant:
		if actor.MerchantID == nil || *actor.MerchantID != settlement.MerchantID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "settlement does not belong to merchant")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "settlements are not visible to customers")
	}
	return settlement, nil
}

func parseSettlementID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "settlementId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id is required")
	}
	settlementID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement id")
	}
	return settlementID, nil
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be RFC3339").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}
