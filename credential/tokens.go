// Package credential keeps the signed-in user's token pair in the OS keyring
// and the admin key for the lifetime of the process.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
	"github.com/vovakirdan/storefront-realtime-go/realtime/rest"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// ErrSessionExpired means the access token has expired and refreshing it failed.
var ErrSessionExpired = errors.New("session expired: sign in again")

// Refresher trades the stored refresh token for a new pair and stores it.
type Refresher interface {
	RefreshTokens(ctx context.Context) (*rest.AuthResponse, error)
}

var (
	_ Refresher                 = (*rest.Client)(nil)
	_ realtime.CredentialSource = (*Manager)(nil)
	_ rest.TokenStore           = (*Manager)(nil)
)

// Manager hands out credentials to the realtime and REST clients.
type Manager struct {
	ring keyring.Keyring
	now  func() time.Time

	mu       sync.RWMutex
	adminKey string
}

// New wraps an opened keyring.
func New(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring, now: time.Now}
}

// SetTokens persists a fresh token pair and the user it belongs to.
func (m *Manager) SetTokens(access, refresh string, user rest.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	items := []keyring.Item{
		{Key: keyAccessToken, Data: []byte(access)},
		{Key: keyRefreshToken, Data: []byte(refresh)},
		{Key: keyUser, Data: userJSON},
	}
	for _, it := range items {
		if err := m.ring.Set(it); err != nil {
			return fmt.Errorf("setting credential %q: %w", it.Key, err)
		}
	}
	return nil
}

// AccessToken returns the stored access token or "".
func (m *Manager) AccessToken() string { return m.get(keyAccessToken) }

// RefreshToken returns the stored refresh token or "".
func (m *Manager) RefreshToken() string { return m.get(keyRefreshToken) }

// User returns the signed-in user, or nil when none is stored.
func (m *Manager) User() (*rest.User, error) {
	item, err := m.ring.Get(keyUser)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", keyUser, err)
	}
	var u rest.User
	if err := json.Unmarshal(item.Data, &u); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &u, nil
}

// ClearTokens removes the token pair and user. Missing entries are not an error.
func (m *Manager) ClearTokens() error {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyUser} {
		if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("deleting credential %q: %w", key, err)
		}
	}
	return nil
}

// SetAdminKey keeps key in memory for this session only.
func (m *Manager) SetAdminKey(key string) {
	m.mu.Lock()
	m.adminKey = key
	m.mu.Unlock()
}

func (m *Manager) AdminKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adminKey
}

func (m *Manager) ClearAdminKey() { m.SetAdminKey("") }

// IsTokenExpired reports whether token's exp claim has passed. The signature
// is not checked; tokens that cannot be parsed count as expired, tokens
// without exp never expire.
func (m *Manager) IsTokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return exp.Before(m.now())
}

// EnsureFresh refreshes the token pair through r when the stored access
// token has expired. An empty token is left for the caller to report.
func (m *Manager) EnsureFresh(ctx context.Context, r Refresher) error {
	tok := m.AccessToken()
	if tok == "" || !m.IsTokenExpired(tok) {
		return nil
	}
	if _, err := r.RefreshTokens(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return nil
}

func (m *Manager) get(key string) string {
	item, err := m.ring.Get(key)
	if err != nil {
		return ""
	}
	return string(item.Data)
}
