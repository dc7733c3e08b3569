package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/muneebhashone/gqlauth/internal/server/services"
	"golang.org/x/oauth2"
)

// OIDCProfileFetcher reads the profile from the verified ID token returned
// with the access token, falling back to the userinfo endpoint.
type OIDCProfileFetcher struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProfileFetcher performs discovery against issuer.
func NewOIDCProfileFetcher(ctx context.Context, issuer, clientID string) (*OIDCProfileFetcher, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	return &OIDCProfileFetcher{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Endpoint returns the provider's OAuth2 endpoints.
func (f *OIDCProfileFetcher) Endpoint() oauth2.Endpoint {
	return f.provider.Endpoint()
}

type idClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (f *OIDCProfileFetcher) FetchProfile(ctx context.Context, tok *oauth2.Token) (services.OAuthProfile, error) {
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		idt, err := f.verifier.Verify(ctx, raw)
		if err != nil {
			return services.OAuthProfile{}, fmt.Errorf("id token: %w", err)
		}
		var c idClaims
		if err := idt.Claims(&c); err != nil {
			return services.OAuthProfile{}, fmt.Errorf("id token claims: %w", err)
		}
		return services.OAuthProfile{Subject: c.Subject, Email: c.Email, EmailVerified: c.EmailVerified}, nil
	}

	if f.provider == nil {
		return services.OAuthProfile{}, errors.New("no id token and no userinfo endpoint")
	}
	ui, err := f.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return services.OAuthProfile{}, fmt.Errorf("userinfo: %w", err)
	}
	return services.OAuthProfile{Subject: ui.Subject, Email: ui.Email, EmailVerified: ui.EmailVerified}, nil
}
