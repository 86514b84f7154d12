package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// expiryMargin is how long before expiry a cached token stops being handed out.
const expiryMargin = 30 * time.Second

// Manager caches a client-credentials access token and fetches a new one on
// demand. Concurrent callers share a single token request.
type Manager struct {
	decl       Declaration
	config     *clientcredentials.Config
	httpClient *http.Client
	fetches    singleflight.Group

	mu    sync.Mutex
	token *oauth2.Token
}

func NewManager(decl Declaration, clientID, clientSecret string) (*Manager, error) {
	if decl.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if decl.TokenURL == "" {
		return nil, fmt.Errorf("tokenURL is required")
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	if decl.Flow == "" {
		decl.Flow = FlowClientCredentials
	}
	if decl.Flow != FlowClientCredentials {
		return nil, fmt.Errorf("unsupported oauth flow %q", decl.Flow)
	}

	return &Manager{
		decl:       decl,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     decl.TokenURL,
			Scopes:       strings.Fields(decl.Scope),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}, nil
}

// SetHTTPClient replaces the client used for token requests.
func (m *Manager) SetHTTPClient(client *http.Client) {
	if client != nil {
		m.httpClient = client
	}
}

func (m *Manager) Provider() string { return m.decl.Provider }

// AccessToken returns a cached token or fetches a new one.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != nil && m.token.AccessToken != "" && !expiresWithin(m.token, expiryMargin) {
		token := m.token.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	v, err, _ := m.fetches.Do("token", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token if it is still the one that was rejected,
// so the next call fetches a fresh one. A token fetched by a concurrent caller
// in the meantime is kept.
func (m *Manager) Invalidate(failed string) {
	m.mu.Lock()
	if m.token == nil || m.token.AccessToken != failed {
		m.mu.Unlock()
		return
	}
	m.token = nil
	m.mu.Unlock()
	invalidations.WithLabelValues(m.decl.Provider).Inc()
	tokenExpiry.WithLabelValues(m.decl.Provider).Set(0)
}

// StartWithInterval refreshes the token ahead of expiry until ctx is done.
func (m *Manager) StartWithInterval(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	threshold := interval
	if threshold < expiryMargin {
		threshold = expiryMargin
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.refreshIfNeeded(ctx, threshold)
			}
		}
	}()
}

func (m *Manager) refreshIfNeeded(ctx context.Context, threshold time.Duration) {
	m.mu.Lock()
	need := m.token == nil || expiresWithin(m.token, threshold)
	m.mu.Unlock()
	if !need {
		return
	}
	_, _, _ = m.fetches.Do("token", func() (any, error) {
		return m.refresh(ctx)
	})
}

// expiresWithin reports whether token expires within d. A token without an
// expiry never expires.
func expiresWithin(token *oauth2.Token, d time.Duration) bool {
	if token.Expiry.IsZero() {
		return false
	}
	return time.Until(token.Expiry) <= d
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	token, err := m.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			tokenErr := &TokenError{Status: retrieveErr.Response.StatusCode, Body: strings.TrimSpace(string(retrieveErr.Body))}
			result := resultError
			if tokenErr.Unauthorized() {
				result = resultRejected
			}
			tokenFetches.WithLabelValues(m.decl.Provider, result).Inc()
			return "", tokenErr
		}
		tokenFetches.WithLabelValues(m.decl.Provider, resultError).Inc()
		return "", err
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	tokenFetches.WithLabelValues(m.decl.Provider, resultOK).Inc()
	if !token.Expiry.IsZero() {
		tokenExpiry.WithLabelValues(m.decl.Provider).Set(float64(token.Expiry.Unix()))
	}
	return token.AccessToken, nil
}

// TokenError is a rejected token request.
type TokenError struct {
	Status int
	Body   string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token request failed %d: %s", e.Status, e.Body)
}

// Unauthorized reports whether the token endpoint rejected the credentials.
func (e *TokenError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusBadRequest || e.Status == http.StatusForbidden
}
