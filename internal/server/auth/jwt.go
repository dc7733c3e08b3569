// Package auth implements the bearer token codec: HS256 JWTs carrying an
// Identity as claims, signed with a process-wide secret that is loaded once
// at startup and never rotated while the process runs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

// Claims is the token payload: registered claims plus the identity fields.
// Nothing else about the user is ever placed here.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Codec signs and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a Codec. A non-positive ttl produces tokens without an
// expiry claim.
func NewCodec(secret []byte, ttl time.Duration) *Codec {
	return &Codec{secret: secret, ttl: ttl, now: time.Now}
}

// Sign mints a token for identity. The result is deterministic for a given
// identity, secret and issued-at second.
func (c *Codec) Sign(identity models.Identity) (string, error) {
	if identity.ID == "" {
		return "", errors.New("identity id is required")
	}

	issuedAt := c.now().Truncate(time.Second)
	rc := jwt.RegisteredClaims{
		Subject:  identity.ID,
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}
	if c.ttl > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(c.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: rc,
		UserID:           identity.ID,
		Email:            identity.Email,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Parse verifies token and returns the identity it carries. Every failure
// is reported as common.ErrTokenInvalid wrapping the cause.
func (c *Codec) Parse(tokenString string) (*models.Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", common.ErrTokenInvalid)
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	// a codec that issues expiring tokens never accepts one without exp
	if c.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	parser := jwt.NewParser(opts...)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing id claim", common.ErrTokenInvalid)
	}

	return &models.Identity{ID: claims.UserID, Email: claims.Email}, nil
}

// Verify is Parse without the error: it returns nil for a missing, malformed,
// forged or expired token. An unauthenticated caller is a normal case.
func (c *Codec) Verify(tokenString string) *models.Identity {
	identity, err := c.Parse(tokenString)
	if err != nil {
		return nil
	}
	return identity
}
