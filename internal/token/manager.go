package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
	"github.com/rafaeljc/fitbit-ingest/internal/validation"
)

// ErrNoCredential means no credential is stored and no bootstrap refresh token was supplied.
var ErrNoCredential = errors.New("token: no stored credential and no initial refresh token")

// AuthError is a rejection from the token endpoint.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh rejected with status %d: %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Fatal reports whether retrying cannot help. A revoked or already-used refresh
// token is answered with 400 or 401.
func (e *AuthError) Fatal() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnauthorized
}

// Manager owns the current credential. AccessToken may be called from any
// goroutine; Refresh is called by the request executor and the refresh task.
type Manager struct {
	oauth      oauth2.Config
	store      Store
	httpClient *http.Client

	mu   sync.RWMutex
	cred Credential
}

// NewManager returns a Manager refreshing against tokenURL with HTTP basic client auth.
// httpClient may be nil to use http.DefaultClient.
func NewManager(clientID, clientSecret, tokenURL string, store Store, httpClient *http.Client) *Manager {
	validation.AssertPresent(store, "token store")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Manager{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:      store,
		httpClient: httpClient,
	}
}

// Init loads the stored credential, falling back to bootstrapRefreshToken on first
// run, and refreshes once so the process starts with a fresh access token.
func (m *Manager) Init(ctx context.Context, bootstrapRefreshToken string) error {
	cred, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		if bootstrapRefreshToken == "" {
			return ErrNoCredential
		}
		logger.FromContext(ctx).Info("no stored credential, using the supplied refresh token")
		cred = Credential{RefreshToken: bootstrapRefreshToken}
	case err != nil:
		return fmt.Errorf("failed to load credential: %w", err)
	}

	m.set(cred)
	if _, err := m.Refresh(ctx); err != nil {
		return fmt.Errorf("initial token refresh failed: %w", err)
	}
	return nil
}

// AccessToken returns the current bearer token.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.AccessToken
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

// Refresh exchanges the current refresh token for a new pair. The new pair is
// kept in memory before it is persisted, so a failed Save still leaves the
// process usable; the error is returned so the caller can log it.
func (m *Manager) Refresh(ctx context.Context) (Credential, error) {
	current := m.Credential()
	if current.RefreshToken == "" {
		return Credential{}, ErrNoCredential
	}

	log := logger.FromContext(ctx)
	log.Info("refreshing access token")

	tok, err := m.oauth.TokenSource(
		context.WithValue(ctx, oauth2.HTTPClient, m.httpClient),
		&oauth2.Token{RefreshToken: current.RefreshToken},
	).Token()
	if err != nil {
		observability.TokenRefreshTotal.WithLabelValues("fail").Inc()
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return Credential{}, &AuthError{Status: re.Response.StatusCode, Body: string(re.Body), Err: err}
		}
		return Credential{}, fmt.Errorf("token refresh request failed: %w", err)
	}

	next := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry.UTC(),
		UserID:       current.UserID,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if uid, ok := tok.Extra("user_id").(string); ok && uid != "" {
		next.UserID = uid
	}

	m.set(next)
	observability.TokenRefreshTotal.WithLabelValues("success").Inc()

	if err := m.store.Save(ctx, next); err != nil {
		log.Error("refreshed credential could not be persisted", slog.Any("credential", next), slog.Any("error", err))
		return next, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	log.Info("access token refreshed", slog.Any("credential", next))
	return next, nil
}

// Name returns the component name.
func (m *Manager) Name() string {
	return "credential"
}

// Check fails until an access token is held.
func (m *Manager) Check(_ context.Context) error {
	if m.AccessToken() == "" {
		return errors.New("no access token")
	}
	return nil
}

func (m *Manager) set(cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = cred
}
