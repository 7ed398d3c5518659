package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims are issued by the external identity provider. Subject carries the
// user id.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Staff bool   `json:"staff,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

func (cfg JWTConfig) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

// ParseToken verifies tokenStr and converts its claims into an Actor.
func ParseToken(cfg JWTConfig, tokenStr string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return cfg.SigningKey, nil
	}, cfg.parserOptions()...)
	if err != nil || !token.Valid {
		return Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid subject: %w", err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: uid, Role: role, Staff: claims.Staff}, nil
}

// IssueToken signs an HS256 token for a. Used by the development CLI and tests.
func IssueToken(cfg JWTConfig, a Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:  string(a.Role),
		Staff: a.Staff,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

func bearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(token), nil
}

// JWTMiddleware authenticates every request and stores the Actor in the
// request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}
			actor, err := ParseToken(cfg, tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))
			return next(c)
		}
	}
}

// DevAuthMiddleware accepts requests without a token as the given fallback
// actor. A presented token is still verified.
func DevAuthMiddleware(cfg JWTConfig, fallback Actor) echo.MiddlewareFunc {
	verify := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := verify(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return verified(c)
			}
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), fallback)))
			return next(c)
		}
	}
}
