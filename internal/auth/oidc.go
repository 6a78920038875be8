package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/dfe-rrdm/rrdm/internal/config"
	"github.com/dfe-rrdm/rrdm/internal/db/models"
)

// ErrOIDCDisabled is returned when OIDC is disabled via configuration.
var ErrOIDCDisabled = errors.New("oidc authentication is disabled")

// OIDCProvider handles OIDC authentication.
type OIDCProvider struct {
	config      config.OIDCAuth
	defaultRole string
	provider    *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	oauth2      oauth2.Config
	db          *gorm.DB
}

// NewOIDCProvider runs discovery against the provider URL.
func NewOIDCProvider(ctx context.Context, cfg config.OIDCAuth, defaultRole string, db *gorm.DB) (*OIDCProvider, error) {
	if !cfg.Enabled {
		return nil, ErrOIDCDisabled
	}

	provider, err := oidc.NewProvider(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	if defaultRole == "" {
		defaultRole = models.RoleViewer
	}

	return &OIDCProvider{
		config:      cfg,
		defaultRole: defaultRole,
		provider:    provider,
		verifier:    provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		db: db,
	}, nil
}

// GenerateStateToken generates a random state token for CSRF protection.
func GenerateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// GetAuthURL returns the OIDC authorization URL with state token.
func (p *OIDCProvider) GetAuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// idClaims are the ID token claims used to provision a user.
type idClaims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// HandleCallback exchanges the code and returns the authenticated user and the raw ID token.
func (p *OIDCProvider) HandleCallback(ctx context.Context, code string) (*models.User, string, error) {
	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, "", ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idClaims
	if err = idToken.Claims(&claims); err != nil {
		return nil, "", fmt.Errorf("failed to parse claims: %w", err)
	}

	user, err := upsertExternalUser(p.db, models.AuthSourceOIDC, p.defaultRole, externalIdentity{
		ExternalID: claims.Sub,
		Username:   claims.Email,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	})
	if err != nil {
		return nil, "", err
	}

	return user, rawIDToken, nil
}

// GetLogoutURL builds the provider's end-session URL, or "" if the
// provider does not advertise one.
func (p *OIDCProvider) GetLogoutURL(idToken, postLogoutRedirectURI string) string {
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}

	if err := p.provider.Claims(&claims); err != nil || claims.EndSessionEndpoint == "" {
		return ""
	}

	q := url.Values{}
	q.Set("id_token_hint", idToken)
	q.Set("post_logout_redirect_uri", postLogoutRedirectURI)

	return claims.EndSessionEndpoint + "?" + q.Encode()
}
