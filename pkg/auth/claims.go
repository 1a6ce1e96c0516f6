package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/shiftledger/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID        string
	ActiveStoreID string
	Role          enums.MemberRole
	Name          string
	JTI           string
}

// AccessTokenClaims is the bearer token issued by the identity service.
// Name is the cashier display name stamped on shifts and movements.
type AccessTokenClaims struct {
	UserID        string           `json:"user_id"`
	ActiveStoreID string           `json:"active_store_id,omitempty"`
	Role          enums.MemberRole `json:"role"`
	Name          string           `json:"name,omitempty"`
	jwt.RegisteredClaims
}

var (
	errMissingUser = errors.New("token missing user_id")
	errInvalidRole = errors.New("token carries an unknown role")
)

// Validate runs after the registered claims checks during parsing.
func (c AccessTokenClaims) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errMissingUser
	}
	if !c.Role.IsValid() {
		return errInvalidRole
	}
	return nil
}

// HasStore reports whether the token is scoped to a store.
func (c AccessTokenClaims) HasStore() bool {
	return strings.TrimSpace(c.ActiveStoreID) != ""
}
