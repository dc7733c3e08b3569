package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/muneebhashone/gqlauth/internal/common"
	"github.com/muneebhashone/gqlauth/internal/server/models"
)

func newTestCodec(secret string, ttl time.Duration, now time.Time) *Codec {
	c := NewCodec([]byte(secret), ttl)
	c.now = func() time.Time { return now }
	return c
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	c := NewCodec([]byte("super-secret"), time.Hour)
	identities := []models.Identity{
		{ID: "user-123", Email: "a@x.com"},
		{ID: "u", Email: ""},
		{ID: "6f1c7a54-1d7e-4a55-9a33-7c1b0f1e2d3c", Email: "ünïcode@example.org"},
	}

	for _, in := range identities {
		tok, err := c.Sign(in)
		if err != nil {
			t.Fatalf("Sign(%+v) error: %v", in, err)
		}

		got := c.Verify(tok)
		if got == nil {
			t.Fatalf("Verify returned nil for freshly signed token of %+v", in)
		}
		if *got != in {
			t.Fatalf("identity mismatch: got %+v want %+v", *got, in)
		}
	}
}

func TestSign_DeterministicForSameIssuedAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := newTestCodec("k", time.Hour, now)
	id := models.Identity{ID: "u1", Email: "a@x.com"}

	a, err := c.Sign(id)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	b, err := c.Sign(id)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if a != b {
		t.Fatalf("tokens differ for same identity/secret/iat:\n%s\n%s", a, b)
	}
}

func TestSign_RejectsEmptyID(t *testing.T) {
	t.Parallel()

	c := NewCodec([]byte("k"), time.Hour)
	if _, err := c.Sign(models.Identity{Email: "a@x.com"}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestSign_ClaimsCarryOnlyIdentity(t *testing.T) {
	t.Parallel()

	c := NewCodec([]byte("k"), time.Hour)
	tok, err := c.Sign(models.Identity{ID: "u1", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	for k := range claims {
		switch k {
		case "id", "email", "sub", "iat", "exp":
		default:
			t.Fatalf("unexpected claim %q in token", k)
		}
	}
}

func TestVerify_ReturnsNil(t *testing.T) {
	t.Parallel()

	c := NewCodec([]byte("right-secret"), time.Hour)
	valid, err := c.Sign(models.Identity{ID: "u2", Email: "b@x.com"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	other, err := NewCodec([]byte("wrong-secret"), time.Hour).Sign(models.Identity{ID: "u2", Email: "b@x.com"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	parts := strings.Split(valid, ".")
	forgedPayload := base64.RawURLEncoding.EncodeToString([]byte(`{"id":"admin","email":"root@x.com","sub":"admin"}`))
	altered := parts[0] + "." + forgedPayload + "." + parts[2]

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u2"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("none token: %v", err)
	}

	cases := map[string]string{
		"empty":            "",
		"malformed":        "not.a.jwt",
		"garbage":          "garbage",
		"other secret":     other,
		"altered payload":  altered,
		"alg none":         noneAlg,
		"truncated":        valid[:len(valid)-4],
		"bearer prefix in": "Bearer " + valid,
	}

	for name, tok := range cases {
		if got := c.Verify(tok); got != nil {
			t.Errorf("%s: expected nil, got %+v", name, got)
		}
	}
}

func TestParse_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	signer := newTestCodec("secret", time.Minute, issued)
	tok, err := signer.Sign(models.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	later := newTestCodec("secret", time.Minute, issued.Add(2*time.Minute))
	_, err = later.Parse(tok)
	if !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if later.Verify(tok) != nil {
		t.Fatal("expired token must verify to nil")
	}
}

func TestParse_MissingIDClaim(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "a@x.com"}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	_, err = NewCodec(secret, time.Hour).Parse(tok)
	if !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParse_MissingExpiryRejectedWhenTTLSet(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u1", "email": "a@x.com"}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	_, err = NewCodec(secret, time.Hour).Parse(tok)
	if !errors.Is(err, common.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for token without exp, got %v", err)
	}
	if NewCodec(secret, 0).Verify(tok) == nil {
		t.Fatal("codec without ttl must accept a token without exp")
	}
}

func TestSign_NoTTLOmitsExpiry(t *testing.T) {
	t.Parallel()

	c := NewCodec([]byte("k"), 0)
	tok, err := c.Sign(models.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if _, ok := claims["exp"]; ok {
		t.Fatal("exp must be omitted when ttl <= 0")
	}
	if c.Verify(tok) == nil {
		t.Fatal("token without exp must still verify")
	}
}
