package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/petalroute/petalroute-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectID   uuid.UUID
	Role        enums.ActorRole
	MerchantID  *uuid.UUID
	CustomerKey *string
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients. Merchant
// actors carry MerchantID; customer actors carry their normalized phone as
// CustomerKey.
type AccessTokenClaims struct {
	SubjectID   uuid.UUID       `json:"subject_id"`
	Role        enums.ActorRole `json:"role"`
	MerchantID  *uuid.UUID      `json:"merchant_id,omitempty"`
	CustomerKey *string         `json:"customer_key,omitempty"`
	jwt.RegisteredClaims
}
