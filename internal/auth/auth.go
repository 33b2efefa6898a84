// Package auth verifies the credentials presented by dashboards and card readers.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// RoleSuper is the token role that grants global (all-operator) scope.
const RoleSuper = "super"

// Errors for authentication failures.
var (
	// ErrMissingToken indicates no bearer token was provided.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingSecret indicates a device sent no shared secret.
	ErrMissingSecret = errors.New("auth: missing device secret")
	// ErrInvalidSecret indicates the device secret does not match.
	ErrInvalidSecret = errors.New("auth: invalid device secret")
)

// Principal is the verified identity behind a dashboard token.
type Principal struct {
	OperatorID int64 // 0 when Super
	Super      bool
	Role       string
}

// Claims are the dashboard token claims issued by the account service.
type Claims struct {
	AdminID int64  `json:"admin_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks dashboard bearer tokens and the device shared secret.
type Verifier struct {
	signingKey       []byte
	deviceSecret     []byte
	deviceSecretHash []byte
}

// NewVerifier creates a Verifier. When deviceSecretHash (bcrypt) is set it is
// used instead of the plain deviceSecret.
func NewVerifier(jwtSecret, deviceSecret, deviceSecretHash string) *Verifier {
	return &Verifier{
		signingKey:       []byte(jwtSecret),
		deviceSecret:     []byte(deviceSecret),
		deviceSecretHash: []byte(deviceSecretHash),
	}
}

// VerifyDashboardToken validates an HS256 bearer token and derives its scope.
// A "super" role yields global scope; any other role is scoped to admin_id.
func (v *Verifier) VerifyDashboardToken(token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Role == RoleSuper {
		return &Principal{Super: true, Role: claims.Role}, nil
	}
	if claims.AdminID <= 0 {
		return nil, fmt.Errorf("%w: missing admin_id claim", ErrInvalidToken)
	}
	return &Principal{OperatorID: claims.AdminID, Role: claims.Role}, nil
}

// IssueDashboardToken signs a token the same way the account service does.
func (v *Verifier) IssueDashboardToken(operatorID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		AdminID: operatorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// VerifyDeviceSecret compares a reader's secret with the configured one.
func (v *Verifier) VerifyDeviceSecret(secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(v.deviceSecretHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(v.deviceSecretHash, []byte(secret)); err != nil {
			return ErrInvalidSecret
		}
		return nil
	}
	if len(v.deviceSecret) == 0 || subtle.ConstantTimeCompare([]byte(secret), v.deviceSecret) != 1 {
		return ErrInvalidSecret
	}
	return nil
}

// HashSecret creates a bcrypt hash suitable for DEVICE_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	// Use bcrypt cost 12
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
