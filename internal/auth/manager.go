package auth

import (
	"context"
	"errors"

	"github.com/cinevo/backend/internal/models"
)

var (
	// ErrRefreshMismatch indicates the presented refresh token is no longer
	// the active one stored for the user (superseded or revoked).
	ErrRefreshMismatch = errors.New("refresh token superseded or revoked")
	// ErrUserNotFound indicates the token's subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
)

// CredentialStore is the slice of the user repository the session manager
// needs: identity lookup and the single stored refresh-token value.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
}

// Manager issues session token pairs and renews them. Each user has exactly
// one active refresh token, stored on the user record; issuing a new pair
// replaces it, which invalidates any previously issued refresh token.
//
// Two concurrent renewals may race on the stored value. That is benign: the
// last write wins and only the pair whose refresh token matches the stored
// value can renew again.
type Manager struct {
	issuer *TokenIssuer
	store  CredentialStore
}

// NewManager constructs a Manager backed by the provided credential store.
func NewManager(issuer *TokenIssuer, store CredentialStore) *Manager {
	if issuer == nil {
		panic("auth: token issuer must not be nil")
	}
	if store == nil {
		panic("auth: credential store must not be nil")
	}
	return &Manager{issuer: issuer, store: store}
}

// Issue creates a new access/refresh pair for the user and persists the
// refresh token as the account's active one.
func (m *Manager) Issue(ctx context.Context, userID string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	access, accessExp, err := m.issuer.IssueAccess(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refresh, refreshExp, err := m.issuer.IssueRefresh(userID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SetRefreshToken(ctx, userID, refresh); err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Authenticate validates an access token and loads its subject. Token errors
// pass through unchanged so callers can distinguish expiry from tampering.
func (m *Manager) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	userID, err := m.issuer.VerifyAccess(accessToken)
	if err != nil {
		return models.User{}, err
	}

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// Refresh exchanges a refresh token for a new pair. The token must verify and
// must exactly match the value stored on the user record; a mismatch means it
// was superseded by a later login or renewal, or revoked by logout.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, models.User, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, models.User{}, ErrTokenInvalid
	}

	userID, err := m.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return models.SessionTokens{}, models.User{}, err
	}

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return models.SessionTokens{}, models.User{}, ErrUserNotFound
	}

	if user.RefreshToken != refreshToken {
		return models.SessionTokens{}, models.User{}, ErrRefreshMismatch
	}

	tokens, err := m.Issue(ctx, userID)
	if err != nil {
		return models.SessionTokens{}, models.User{}, err
	}
	return tokens, user, nil
}

// Revoke clears the stored refresh token so the current session cannot renew.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return m.store.SetRefreshToken(ctx, userID, "")
}
