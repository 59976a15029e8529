package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sigmalabbd/labstore-backend/pkg/config"
	"github.com/sigmalabbd/labstore-backend/pkg/errors"
)

// MintAccessToken signs an HS256 access token for an admin user.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return "", errors.New(errors.CodeInternal, "jwt secret is not configured")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return "", errors.New(errors.CodeInternal, "jwt issuer is not configured")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New(errors.CodeInternal, "jwt expiration must be positive")
	}
	if payload.AdminID == uuid.Nil {
		return "", errors.New(errors.CodeInternal, "admin id is required to mint a token")
	}
	if strings.TrimSpace(payload.Role) == "" {
		return "", errors.New(errors.CodeInternal, "role is required to mint a token")
	}

	jti := payload.JTI
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		AdminID: payload.AdminID,
		Role:    payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.AdminID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "failed to sign access token")
	}
	return signed, nil
}

// ParseAccessToken verifies the signature, issuer and expiry of a raw token
// and returns its claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing access token")
	}

	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid access token")
	}
	if !token.Valid {
		return nil, errors.New(errors.CodeUnauthorized, "invalid access token")
	}
	if claims.AdminID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "token is missing an admin id")
	}
	if strings.TrimSpace(claims.Role) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "token is missing a role")
	}
	return claims, nil
}

// ParseExpiredAccessToken verifies signature and issuer but tolerates an
// elapsed expiry. The refresh flow needs the claims of a token that has
// just timed out.
func ParseExpiredAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing access token")
	}

	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid access token")
	}
	if token == nil {
		return nil, errors.New(errors.CodeUnauthorized, "invalid access token")
	}
	if claims.Issuer != cfg.Issuer {
		return nil, errors.New(errors.CodeUnauthorized, "invalid token issuer")
	}
	if claims.AdminID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "token is missing an admin id")
	}
	if strings.TrimSpace(claims.Role) == "" || strings.TrimSpace(claims.ID) == "" {
		return nil, errors.New(errors.CodeUnauthorized, "token is missing required claims")
	}
	return claims, nil
}
