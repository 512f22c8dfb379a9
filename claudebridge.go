// Package claudebridge assembles a configured Claude client: a credential
// store, an OAuth session manager, and a content generator wired together
// from a single Config.
package claudebridge

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/modelrelay/claudebridge/pkg/auth"
	"github.com/modelrelay/claudebridge/pkg/claude"
	"github.com/modelrelay/claudebridge/pkg/config"
)

// Client bundles the session manager and generator built from one Config.
type Client struct {
	Sessions  *auth.SessionManager
	Generator *claude.Generator
}

// New builds a client from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	sessions := auth.NewSessionManager(store, auth.SessionManagerOptions{
		ClientID:    cfg.OAuth.ClientID,
		AuthURL:     cfg.OAuth.AuthURL,
		TokenURL:    cfg.OAuth.TokenURL,
		RedirectURI: cfg.OAuth.RedirectURI,
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	generator := claude.NewGenerator(claude.GeneratorOptions{
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		APIKey:       cfg.APIKey,
		Tokens:       sessions,
		Limiter:      limiter,
	})

	return &Client{Sessions: sessions, Generator: generator}, nil
}

func newStore(cfg *config.Config) (auth.Store, error) {
	switch cfg.Credentials.Backend {
	case "", config.BackendFile:
		dir := cfg.Credentials.Dir
		if dir == "" {
			dir = auth.DefaultCredentialDir()
		}
		return auth.NewFileStore(dir)
	case config.BackendKeyring:
		return auth.NewKeyringStore(cfg.Credentials.Service), nil
	case config.BackendMemory:
		return auth.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Credentials.Backend)
	}
}
