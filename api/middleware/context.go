package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/internal/orders"
	"github.com/petalroute/petalroute-backend/pkg/enums"
)

type contextKey string

const (
	ctxRole        contextKey = "actor_role"
	ctxMerchantID  contextKey = "merchant_id"
	ctxCustomerKey contextKey = "customer_key"
)

// WithActor seeds the request context with the authenticated principal.
func WithActor(ctx context.Context, role enums.ActorRole, merchantID *uuid.UUID, customerKey *string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxRole, role)
	if merchantID != nil {
		ctx = context.WithValue(ctx, ctxMerchantID, *merchantID)
	}
	if customerKey != nil {
		ctx = context.WithValue(ctx, ctxCustomerKey, *customerKey)
	}
	return ctx
}

// RoleFromContext returns the authenticated role, or "" when unauthenticated.
func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// MerchantIDFromContext returns the authenticated merchant account id.
func MerchantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxMerchantID).(uuid.UUID)
	return v, ok
}

// CustomerKeyFromContext returns the authenticated customer key.
func CustomerKeyFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(ctxCustomerKey).(string)
	return v, ok
}

// ActorFromContext rebuilds the domain actor from the request context.
func ActorFromContext(ctx context.Context) orders.Actor {
	actor := orders.Actor{Role: RoleFromContext(ctx)}
	if merchantID, ok := MerchantIDFromContext(ctx); ok {
		actor.MerchantID = &merchantID
	}
	if customerKey, ok := CustomerKeyFromContext(ctx); ok {
		actor.CustomerKey = &customerKey
	}
	return actor
}
