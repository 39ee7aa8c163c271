// Package identity issues and checks the bearer tokens that guard the
// administrative routes of votechaind.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Issuer is the "iss" claim of every admin token.
	Issuer = "votechaind"

	roleAdmin = "admin"

	ctxAdminClaims = "admin_claims"

	// DefaultAdminTTL is the admin token lifetime when none is given.
	DefaultAdminTTL = 8 * time.Hour
)

// ErrNoSecret is returned when an issuer is used without a signing secret.
var ErrNoSecret = errors.New("admin secret is not configured")

// AdminClaims are the JWT claims of an admin token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AdminTokenIssuer issues and verifies HS256 admin tokens signed with a
// shared secret.
type AdminTokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewAdminTokenIssuer creates an AdminTokenIssuer. An empty secret yields a
// disabled issuer: Enabled reports false and Issue/Verify fail.
func NewAdminTokenIssuer(secret string) *AdminTokenIssuer {
	return &AdminTokenIssuer{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (a *AdminTokenIssuer) Enabled() bool {
	return len(a.secret) > 0
}

// Issue creates a signed admin token valid for ttl (DefaultAdminTTL when zero).
func (a *AdminTokenIssuer) Issue(ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultAdminTTL
	}
	now := a.now().UTC()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   roleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		Role: roleAdmin,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an admin token, returning its claims.
func (a *AdminTokenIssuer) Verify(tokenStr string) (*AdminClaims, error) {
	if !a.Enabled() {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&AdminClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify admin token: %w", err)
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid admin token claims")
	}
	if claims.Role != roleAdmin {
		return nil, fmt.Errorf("not an admin token")
	}
	return claims, nil
}

// RequireAdmin returns a Gin middleware that enforces a valid admin Bearer
// token. When the issuer has no secret the routes are left open, which is
// the behaviour of a development server.
func RequireAdmin(tokens *AdminTokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !tokens.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxAdminClaims, claims)
		c.Next()
	}
}

// AdminClaimsFromCtx retrieves the claims injected by RequireAdmin, or nil.
func AdminClaimsFromCtx(c *gin.Context) *AdminClaims {
	v, _ := c.Get(ctxAdminClaims)
	claims, _ := v.(*AdminClaims)
	return claims
}
