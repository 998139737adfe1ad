// Package credentials acquires and caches the bearer token used against the
// external ticketing API.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// refreshMargin is subtracted from the advertised lifetime and required again on reuse.
const refreshMargin = 60 * time.Second

// DefaultMaxAttempts bounds GetWithRetry when callers pass a non-positive value.
const DefaultMaxAttempts = 3

const defaultExpiresIn = 300

// ErrCredentialsExhausted marks a terminal failure to obtain a token.
var ErrCredentialsExhausted = errors.New("credentials: token acquisition exhausted")

// CredentialError is returned once every attempt to obtain a token has failed.
type CredentialError struct {
	Attempts int
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential acquisition failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *CredentialError) Unwrap() []error {
	return []error{ErrCredentialsExhausted, e.Err}
}

// Provider hands out bearer tokens for the ticketing API.
type Provider interface {
	Get(ctx context.Context) (string, error)
	GetWithRetry(ctx context.Context, maxAttempts int) (string, error)
	Invalidate()
}

// GrantRecorder receives one call per grant request.
type GrantRecorder interface {
	RecordTokenGrant(result string)
}

// Config holds client-credentials settings.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
}

// Token is the cached service token.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Broker is a process-wide token cache. Refreshes are not serialised: concurrent
// callers that find the cache cold each perform their own grant.
type Broker struct {
	cfg     Config
	client  *http.Client
	logger  *zap.Logger
	metrics GrantRecorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	token *Token
}

// Option customises a Broker.
type Option func(*Broker)

// WithHTTPClient overrides the HTTP client used for grants.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Broker) {
		b.client = c
	}
}

// WithLogger injects a zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Broker) {
		b.logger = l
	}
}

// WithMetrics records grant attempts.
func WithMetrics(r GrantRecorder) Option {
	return func(b *Broker) {
		b.metrics = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *Broker) {
		b.sleep = sleep
	}
}

// NewBroker builds a broker for the given identity provider.
func NewBroker(cfg Config, opts ...Option) *Broker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	b := &Broker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: zap.NewNop(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get returns the cached token while it has more than a minute left, otherwise
// performs a fresh client-credentials grant.
func (b *Broker) Get(ctx context.Context) (string, error) {
	now := b.now()
	b.mu.RLock()
	cached := b.token
	b.mu.RUnlock()
	if cached != nil && cached.Expiry.Sub(now) > refreshMargin {
		return cached.AccessToken, nil
	}

	token, err := b.grant(ctx)
	if err != nil {
		b.record("error")
		return "", err
	}
	b.record("ok")

	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
	return token.AccessToken, nil
}

// GetWithRetry calls Get up to maxAttempts times, waiting 2^(attempt-1) seconds
// after each failure. Exhaustion yields a *CredentialError.
func (b *Broker) GetWithRetry(ctx context.Context, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := b.Get(ctx)
		if err == nil {
			return token, nil
		}
		lastErr = err
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		b.logger.Warn("service token request failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := b.sleep(ctx, backoff); err != nil {
			return "", &CredentialError{Attempts: attempt, Err: err}
		}
	}
	return "", &CredentialError{Attempts: maxAttempts, Err: lastErr}
}

// Invalidate drops the cached token so the next Get performs a grant.
func (b *Broker) Invalidate() {
	b.mu.Lock()
	b.token = nil
	b.mu.Unlock()
	b.logger.Info("service token invalidated")
}

// Cached reports the current cached token, if any.
func (b *Broker) Cached() (Token, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.token == nil {
		return Token{}, false
	}
	return *b.token, true
}

func (b *Broker) grant(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", b.cfg.ClientID)
	form.Set("client_secret", b.cfg.ClientSecret)
	if b.cfg.Scope != "" {
		form.Set("scope", b.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	issuedAt := b.now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	b.logger.Debug("service token acquired", zap.Int64("expires_in", expiresIn))
	return &Token{
		AccessToken: payload.AccessToken,
		Expiry:      issuedAt.Add(time.Duration(expiresIn)*time.Second - refreshMargin),
	}, nil
}

func (b *Broker) record(result string) {
	if b.metrics != nil {
		b.metrics.RecordTokenGrant(result)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
