package security

import (
	"errors"
	"time"

	"innovate_api/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	TokenAuth *jwtauth.JWTAuth
	tokenTTL  time.Duration
)

func InitJWT() {
	SetSigningKey(config.AppConfig.JWTKey, config.AppConfig.JWTExp)
}

func SetSigningKey(key []byte, ttl time.Duration) {
	TokenAuth = jwtauth.New("HS256", key, nil)
	tokenTTL = ttl
}

// Principal is the authenticated caller as carried by a bearer token.
type Principal struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// TokenTTL is how long freshly issued tokens stay valid.
func TokenTTL() time.Duration {
	return tokenTTL
}

func GenerateToken(userID, email, role string) (string, error) {
	claims := jwt.MapClaims{
		"id":    userID,
		"email": email,
		"role":  role,
		"jti":   uuid.NewString(),
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, tokenTTL)
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", errors.New("id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

// PrincipalFromClaims accepts both decoded (time.Time) and raw (numeric) iat and exp values.
func PrincipalFromClaims(claims jwt.MapClaims) (*Principal, error) {
	userID, err := GetUserIDFromClaims(claims)
	if err != nil {
		return nil, err
	}
	role, err := GetUserRoleFromClaims(claims)
	if err != nil {
		return nil, err
	}
	p := &Principal{UserID: userID, Role: role}
	p.Email, _ = claims["email"].(string)
	p.TokenID, _ = claims["jti"].(string)
	p.IssuedAt = claimTime(claims["iat"])
	p.ExpiresAt = claimTime(claims["exp"])
	return p, nil
}

func claimTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case float64:
		return time.Unix(int64(t), 0)
	case int64:
		return time.Unix(t, 0)
	}
	return time.Time{}
}
