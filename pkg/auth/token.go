package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shiftledger/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var (
	// ErrTokenExpired lets callers tell a stale token from a forged one.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Verifier checks bearer tokens minted by the identity service. The API never
// issues tokens itself.
type Verifier struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	return &Verifier{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

// Verify returns the claims of a valid token. Failures wrap ErrTokenExpired
// or ErrTokenInvalid.
func (v *Verifier) Verify(raw string) (*AccessTokenClaims, error) {
	if v == nil || len(v.key) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	claims := &AccessTokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// ParseAccessToken is a one-shot Verify.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	return NewVerifier(cfg).Verify(raw)
}

// MintAccessToken signs a token the way the identity service does. It backs
// tests and local tooling.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case ttl <= 0:
		return "", errors.New("token ttl must be positive")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID:        strings.TrimSpace(payload.UserID),
		ActiveStoreID: strings.TrimSpace(payload.ActiveStoreID),
		Role:          payload.Role,
		Name:          payload.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
