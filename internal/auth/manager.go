package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/boxkite-mcp/boxkite/internal/logging"
	"github.com/boxkite-mcp/boxkite/internal/secrets"
)

const (
	// DefaultAuthURL is the provider's authorization endpoint.
	DefaultAuthURL = "https://www.dropbox.com/oauth2/authorize"

	// DefaultTokenURL is the provider's token endpoint.
	DefaultTokenURL = "https://api.dropboxapi.com/oauth2/token"

	// tokenRequestTimeout bounds every token-endpoint round trip.
	tokenRequestTimeout = 10 * time.Second
)

// Config holds the settings for the token manager.
type Config struct {
	AppKey      string
	AppSecret   string
	RedirectURI string

	// AuthURL and TokenURL default to the provider endpoints; overridden
	// in tests.
	AuthURL  string
	TokenURL string

	// TokenFile is where the encrypted credential is persisted.
	TokenFile string

	// RefreshThreshold is how long before expiry a refresh is triggered.
	RefreshThreshold time.Duration

	// MaxRetries bounds consecutive refresh attempts.
	MaxRetries int

	// RetryDelay is the wait between retryable refresh failures and the
	// cooldown window between attempts.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = 5 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// Manager owns the process-wide credential and drives the refresh state
// machine. All credential access goes through the internal mutex, so
// concurrent tool invocations share a single refresh.
type Manager struct {
	cfg        Config
	store      *secrets.Store
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	onRefresh  func(result string)

	mu   sync.Mutex
	cred *Credential
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for token-endpoint calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRefreshObserver registers a callback invoked after every refresh
// attempt with "success", "failure", or "exhausted". Used to feed metrics.
func WithRefreshObserver(fn func(result string)) Option {
	return func(m *Manager) { m.onRefresh = fn }
}

// NewManager creates a token manager and loads any persisted credential.
// A token file that exists but cannot be decrypted is a hard error: the
// store is corrupted or the key was rotated, and proceeding with an empty
// credential would only surface as confusing 401s later.
func NewManager(cfg Config, store *secrets.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("secret store is required")
	}

	m := &Manager{
		cfg:        cfg.withDefaults(),
		store:      store,
		httpClient: &http.Client{Timeout: tokenRequestTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.cfg.TokenFile != "" {
		cred, err := m.load()
		if err != nil {
			return nil, err
		}
		m.cred = cred
	}
	return m, nil
}

// GenerateVerifier returns a fresh PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the provider authorization URL for the PKCE flow.
// token_access_type=offline asks the provider for a refresh token.
func (m *Manager) AuthCodeURL(state, verifier string) string {
	conf := m.oauthConfig()
	return conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("token_access_type", "offline"),
	)
}

func (m *Manager) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.AppKey,
		ClientSecret: m.cfg.AppSecret,
		RedirectURL:  m.cfg.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.cfg.AuthURL,
			TokenURL: m.cfg.TokenURL,
		},
	}
}

// ExchangeCode exchanges an authorization code plus PKCE verifier for a
// fresh credential, persists it, and installs it as the active credential.
// Codes are single-use, so failures are never retried here.
func (m *Manager) ExchangeCode(ctx context.Context, code, verifier string) (*Credential, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}
	if verifier == "" {
		return nil, fmt.Errorf("code verifier is required")
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
		"client_id":     {m.cfg.AppKey},
	}
	if m.cfg.AppSecret != "" {
		form.Set("client_secret", m.cfg.AppSecret)
	}
	if m.cfg.RedirectURI != "" {
		form.Set("redirect_uri", m.cfg.RedirectURI)
	}

	tr, err := m.postToken(ctx, form)
	if err != nil {
		var endpointErr *tokenEndpointError
		if errors.As(err, &endpointErr) {
			return nil, fmt.Errorf("authorization code exchange rejected: %s", endpointErr.describe())
		}
		return nil, fmt.Errorf("authorization code exchange failed: %w", err)
	}

	now := m.now()
	cred := &Credential{
		AccessToken:     tr.AccessToken,
		RefreshToken:    tr.RefreshToken,
		ExpiresAt:       now.Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli(),
		Scope:           parseScope(tr.Scope),
		CodeVerifier:    verifier,
		RefreshAttempts: 0,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persistLocked(cred); err != nil {
		return nil, err
	}
	m.cred = cred

	m.logger.Info("authorization code exchanged",
		slog.Time("expires_at", cred.ExpiresAtTime()),
		slog.String("scope", strings.Join(cred.Scope, " ")),
		slog.Bool("can_refresh", cred.RefreshToken != ""),
	)
	return cred, nil
}

// AccessToken returns a valid bearer token, refreshing it first when it is
// within the configured threshold of expiry. Implements dropbox.TokenSource.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return "", &ErrNotAuthenticated{Reason: "no credential loaded"}
	}

	// Static long-lived tokens carry no expiry and are served as-is.
	if m.cred.ExpiresAt == 0 {
		return m.cred.AccessToken, nil
	}

	deadline := m.cred.ExpiresAtTime().Add(-m.cfg.RefreshThreshold)
	if m.now().Before(deadline) {
		return m.cred.AccessToken, nil
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		err := m.refreshLocked(ctx)
		if err == nil {
			return m.cred.AccessToken, nil
		}

		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) && !refreshErr.Retryable {
			return "", err
		}
		lastErr = err

		if attempt < m.cfg.MaxRetries {
			if err := m.wait(ctx, m.cfg.RetryDelay); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("token refresh failed after %d attempts: %w", m.cfg.MaxRetries, lastErr)
}

// refreshLocked performs one refresh attempt. The caller holds m.mu.
func (m *Manager) refreshLocked(ctx context.Context) error {
	cred := m.cred
	if cred.RefreshToken == "" {
		return &RefreshError{
			Kind:      KindNoRefreshToken,
			Retryable: false,
			Message:   "no refresh token available; re-authenticate",
		}
	}

	now := m.now()

	// Cooldown guard against refresh storms from repeated caller
	// invocations. This is a mitigation, not a lock; the mutex is the
	// actual single-flight guarantee.
	if cred.LastRefreshAttempt != 0 {
		since := now.Sub(time.UnixMilli(cred.LastRefreshAttempt))
		if since < m.cfg.RetryDelay {
			return &RefreshError{
				Kind:      KindRateLimit,
				Retryable: true,
				Message:   fmt.Sprintf("refresh attempted %s ago, cooldown is %s", since.Round(time.Millisecond), m.cfg.RetryDelay),
			}
		}
	}

	cred.LastRefreshAttempt = now.UnixMilli()
	cred.RefreshAttempts++
	if cred.RefreshAttempts > m.cfg.MaxRetries {
		m.observeRefresh("exhausted")
		return &RefreshError{
			Kind:      KindMaxRetries,
			Retryable: false,
			Message:   fmt.Sprintf("max retries (%d) exceeded; re-authenticate", m.cfg.MaxRetries),
		}
	}

	// The PKCE verifier is deliberately not sent: the refresh-token
	// grant does not require it.
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {m.cfg.AppKey},
	}
	if m.cfg.AppSecret != "" {
		form.Set("client_secret", m.cfg.AppSecret)
	}

	tr, err := m.postToken(ctx, form)
	if err != nil {
		refreshErr := classifyRefreshFailure(err)
		m.observeRefresh("failure")
		m.logger.Warn("token refresh attempt failed",
			slog.String("kind", string(refreshErr.Kind)),
			slog.Bool("retryable", refreshErr.Retryable),
			slog.Int("attempts", cred.RefreshAttempts),
			logging.Err(err),
		)
		return refreshErr
	}

	next := &Credential{
		AccessToken:     tr.AccessToken,
		RefreshToken:    cred.RefreshToken,
		ExpiresAt:       now.Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli(),
		Scope:           cred.Scope,
		CodeVerifier:    cred.CodeVerifier,
		RefreshAttempts: 0,
	}
	if tr.RefreshToken != "" {
		next.RefreshToken = tr.RefreshToken
	}
	if tr.Scope != "" {
		next.Scope = parseScope(tr.Scope)
	}

	if err := m.persistLocked(next); err != nil {
		return &RefreshError{
			Kind:      KindUnknown,
			Retryable: true,
			Message:   "failed to persist refreshed credential",
			Err:       err,
		}
	}
	m.cred = next
	m.observeRefresh("success")
	m.logger.Info("access token refreshed", slog.Time("expires_at", next.ExpiresAtTime()))
	return nil
}

// Status returns a snapshot of the credential state without token material.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return Status{}
	}
	return Status{
		Authenticated:   true,
		Scope:           append([]string(nil), m.cred.Scope...),
		ExpiresAt:       m.cred.ExpiresAtTime(),
		CanRefresh:      m.cred.RefreshToken != "",
		RefreshAttempts: m.cred.RefreshAttempts,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// tokenEndpointError is a non-2xx response from the token endpoint.
type tokenEndpointError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *tokenEndpointError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.describe())
}

func (e *tokenEndpointError) describe() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("http %d", e.StatusCode)
	}
}

func classifyRefreshFailure(err error) *RefreshError {
	var endpointErr *tokenEndpointError
	if !errors.As(err, &endpointErr) {
		// No HTTP response was received at all.
		return &RefreshError{
			Kind:      KindNetworkError,
			Retryable: true,
			Message:   "no response from token endpoint",
			Err:       err,
		}
	}

	switch {
	case endpointErr.StatusCode == http.StatusUnauthorized && endpointErr.Code == "invalid_grant":
		return &RefreshError{
			Kind:      KindInvalidGrant,
			Retryable: false,
			Message:   "refresh token revoked or expired; re-authenticate",
			Err:       err,
		}
	case endpointErr.StatusCode == http.StatusTooManyRequests:
		return &RefreshError{
			Kind:      KindRateLimit,
			Retryable: true,
			Message:   "token endpoint rate limited the request",
			Err:       err,
		}
	case endpointErr.StatusCode >= 500:
		return &RefreshError{
			Kind:      KindServerError,
			Retryable: true,
			Message:   "token endpoint server error",
			Err:       err,
		}
	default:
		return &RefreshError{
			Kind:      KindUnknown,
			Retryable: true,
			Message:   endpointErr.describe(),
			Err:       err,
		}
	}
}

func (m *Manager) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		endpointErr := &tokenEndpointError{StatusCode: resp.StatusCode}
		var providerErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &providerErr) == nil {
			endpointErr.Code = providerErr.Error
			endpointErr.Description = providerErr.ErrorDescription
		}
		return nil, endpointErr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}
	return &tr, nil
}

// persistLocked writes the credential through the secret store. The caller
// holds m.mu. Persist-before-install keeps the invariant that the active
// in-memory credential is always on disk.
func (m *Manager) persistLocked(cred *Credential) error {
	if m.cfg.TokenFile == "" {
		return nil
	}

	blob, err := m.store.Encrypt(cred)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize token file: %w", err)
	}
	if err := os.WriteFile(m.cfg.TokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (m *Manager) load() (*Credential, error) {
	data, err := os.ReadFile(m.cfg.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var blob secrets.Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("token store is corrupted: %w; delete %s and re-authenticate", err, m.cfg.TokenFile)
	}

	var cred Credential
	if err := m.store.Decrypt(&blob, &cred); err != nil {
		return nil, fmt.Errorf("token store cannot be decrypted (corrupted file or rotated key): %w; delete %s and re-authenticate", err, m.cfg.TokenFile)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("token store holds no access token; delete %s and re-authenticate", m.cfg.TokenFile)
	}
	return &cred, nil
}

func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) observeRefresh(result string) {
	if m.onRefresh != nil {
		m.onRefresh(result)
	}
}
