// Package infisical implements secretstore.Store against an Infisical
// project/environment: an external KV secret store reached over an
// authenticated API rather than the catalog's own database. It owns its
// own session lifecycle, including a background token-refresh loop and
// retry-on-failure around every call.
package infisical

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/logging"

	"github.com/cenkalti/backoff/v5"
	infisical "github.com/infisical/go-sdk"
)

var log = logging.For("secretstore/infisical")

// Config names the Infisical project/environment this Store reads and
// writes, and the universal-auth credentials used to obtain a token.
type Config struct {
	SiteURL         string
	ClientID        string
	ClientSecret    string
	ProjectID       string
	Environment     string
	SecretPath      string
	RefreshInterval time.Duration
}

// client is the subset of the Infisical SDK this package calls, narrowed
// to an interface so Store's session lifecycle (login, refresh, retry)
// can be tested without a live Infisical project.
type client interface {
	Login(clientID, clientSecret string) error
	Create(ctx context.Context, cfg Config, key, value string) error
	Retrieve(ctx context.Context, cfg Config, key string) (string, error)
	Delete(ctx context.Context, cfg Config, key string) error
}

// sdkClient adapts github.com/infisical/go-sdk's fluent Auth()/Secrets()
// client to the client interface.
type sdkClient struct {
	inner infisical.InfisicalClient
}

func newSDKClient(siteURL string) sdkClient {
	return sdkClient{inner: infisical.NewInfisicalClient(context.Background(), infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})}
}

func (c sdkClient) Login(clientID, clientSecret string) error {
	_, err := c.inner.Auth().UniversalAuthLogin(clientID, clientSecret)
	return err
}

func (c sdkClient) Create(ctx context.Context, cfg Config, key, value string) error {
	_, err := c.inner.Secrets().Create(infisical.CreateSecretOptions{
		ProjectID:   cfg.ProjectID,
		Environment: cfg.Environment,
		SecretPath:  cfg.SecretPath,
		SecretKey:   key,
		SecretValue: value,
	})
	return err
}

func (c sdkClient) Retrieve(ctx context.Context, cfg Config, key string) (string, error) {
	secret, err := c.inner.Secrets().Retrieve(infisical.RetrieveSecretOptions{
		ProjectID:   cfg.ProjectID,
		Environment: cfg.Environment,
		SecretPath:  cfg.SecretPath,
		SecretKey:   key,
	})
	if err != nil {
		return "", err
	}
	return secret.SecretValue, nil
}

func (c sdkClient) Delete(ctx context.Context, cfg Config, key string) error {
	_, err := c.inner.Secrets().Delete(infisical.DeleteSecretOptions{
		ProjectID:   cfg.ProjectID,
		Environment: cfg.Environment,
		SecretPath:  cfg.SecretPath,
		SecretKey:   key,
	})
	return err
}

// Store owns Infisical session lifecycle: logging in, refreshing the
// token on a timer, and retrying transient failures with exponential
// backoff. It does not seal values itself; Infisical's own client-side
// encryption is this backend's encryption-at-rest story.
type Store struct {
	cfg    Config
	client client

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New authenticates once synchronously (a Store that can't reach
// Infisical at startup should fail startup, not fail the first request)
// and then starts the background refresh loop.
func New(cfg Config) (*Store, error) {
	return newStore(cfg, newSDKClient(cfg.SiteURL))
}

func newStore(cfg Config, c client) (*Store, error) {
	if cfg.SecretPath == "" {
		cfg.SecretPath = "/"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Minute
	}

	s := &Store{
		cfg:      cfg,
		client:   c,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	if err := s.login(context.Background()); err != nil {
		return nil, err
	}
	go s.run()
	return s, nil
}

func (s *Store) login(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Login(s.cfg.ClientID, s.cfg.ClientSecret)
	}, backoff.WithMaxTries(5))
	if err != nil {
		return icebergerr.Wrap(icebergerr.KindAuthorizationBackendError, "infisical universal auth login", err)
	}
	return nil
}

// run refreshes the auth token on cfg.RefreshInterval. A failed refresh
// is logged and retried next tick rather than torn down: an expired
// token fails the next request with a clear AuthorizationBackendError,
// which is preferable to killing the whole Store over one bad cycle.
func (s *Store) run() {
	defer close(s.doneChan)
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.login(context.Background()); err != nil {
				log.Warnf("infisical token refresh failed: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// Stop halts the background refresh loop.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
}

func (s *Store) Create(ctx context.Context, value []byte) (string, error) {
	id := ids.NewSecretID()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Create(ctx, s.cfg, id.String(), string(value))
	}, backoff.WithMaxTries(3))
	if err != nil {
		return "", icebergerr.Wrap(icebergerr.KindSecretReadFailed, "infisical create secret", err)
	}
	return id.String(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) ([]byte, error) {
	value, err := backoff.Retry(ctx, func() (string, error) {
		return s.client.Retrieve(ctx, s.cfg, id)
	}, backoff.WithMaxTries(3))
	if err != nil {
		return nil, icebergerr.Wrap(icebergerr.KindSecretReadFailed, fmt.Sprintf("infisical retrieve secret %q", id), err)
	}
	return []byte(value), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.Delete(ctx, s.cfg, id)
	}, backoff.WithMaxTries(3))
	if err != nil {
		return icebergerr.Wrap(icebergerr.KindSecretReadFailed, fmt.Sprintf("infisical delete secret %q", id), err)
	}
	return nil
}
