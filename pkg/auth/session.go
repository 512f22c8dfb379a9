package auth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/modelrelay/claudebridge/internal/httputil"
	"github.com/modelrelay/claudebridge/pkg/types"
)

// Anthropic OAuth endpoints and the public Claude client.
const (
	DefaultClientID    = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	DefaultAuthURL     = "https://claude.ai/oauth/authorize"
	DefaultTokenURL    = "https://console.anthropic.com/v1/oauth/token"
	DefaultRedirectURI = "https://console.anthropic.com/oauth/code/callback"
	DefaultScope       = "org:create_api_key user:profile user:inference"
)

// ProviderKey is the credential store key for Claude OAuth records.
const ProviderKey = "claude-oauth"

// flowPhase is the session manager's state machine:
// Idle -> AwaitingCode -> Completing -> Idle.
type flowPhase int

const (
	phaseIdle flowPhase = iota
	phaseAwaitingCode
	phaseCompleting
)

// session is the ephemeral per-flow state: the PKCE verifier, the CSRF state
// token, and the authorization URL built from them. At most one exists per
// manager; it is consumed exactly once by a successful code exchange.
type session struct {
	id       string
	verifier string
	state    string
	authURL  string
}

// FlowStart is the result of StartFlow.
type FlowStart struct {
	// AlreadyAuthenticated is set when a valid credential exists and no
	// flow was started.
	AlreadyAuthenticated bool

	AuthorizationURL string
	Instructions     string
}

const flowInstructions = "Sign in with your Claude account, then paste the code shown on the callback page."

// SessionManagerOptions configures a SessionManager. Zero-value fields use
// the Anthropic defaults.
type SessionManagerOptions struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	RedirectURI string
	Scope       string

	HTTPClient *http.Client

	// OpenBrowser overrides the browser launcher; used by tests and by
	// hosts that render the URL themselves. Nil uses OpenBrowser.
	OpenBrowser func(url string) error
}

// SessionManager owns the one-shot OAuth authorization-code-with-PKCE flow
// for the Claude provider. It is safe for concurrent use from independent
// call sites (a UI trigger and a CLI command, for example): starting a flow
// is idempotent while one is active, and completion is strictly serialized
// so an authorization code can never be spent twice.
type SessionManager struct {
	clientID    string
	authURL     string
	tokenURL    string
	redirectURI string
	scope       string

	store       Store
	client      *http.Client
	openBrowser func(string) error

	// mu is the structural lock; it is held only for the synchronous
	// portions of each operation, never across network calls.
	mu         sync.Mutex
	phase      flowPhase
	sess       *session
	flowActive bool // a StartFlow is creating or holds a session
	completing bool // a CompleteFlow is in flight
}

// NewSessionManager creates a manager persisting credentials to store.
func NewSessionManager(store Store, opts SessionManagerOptions) *SessionManager {
	m := &SessionManager{
		clientID:    opts.ClientID,
		authURL:     opts.AuthURL,
		tokenURL:    opts.TokenURL,
		redirectURI: opts.RedirectURI,
		scope:       opts.Scope,
		store:       store,
		client:      opts.HTTPClient,
		openBrowser: opts.OpenBrowser,
	}
	if m.clientID == "" {
		m.clientID = DefaultClientID
	}
	if m.authURL == "" {
		m.authURL = DefaultAuthURL
	}
	if m.tokenURL == "" {
		m.tokenURL = DefaultTokenURL
	}
	if m.redirectURI == "" {
		m.redirectURI = DefaultRedirectURI
	}
	if m.scope == "" {
		m.scope = DefaultScope
	}
	if m.client == nil {
		m.client = httputil.DefaultClient()
	}
	if m.openBrowser == nil {
		m.openBrowser = OpenBrowser
	}
	return m
}

// HasValidCredential reports whether a usable OAuth access token is
// available, refreshing an expired one when a refresh token exists.
func (m *SessionManager) HasValidCredential(ctx context.Context) bool {
	return m.AccessToken(ctx) != ""
}

// StartFlow begins (or joins) an OAuth flow. If a valid credential already
// exists it reports AlreadyAuthenticated and does nothing. If a flow is
// already active it returns the same authorization URL rather than minting a
// second session. Otherwise it generates a PKCE verifier/challenge pair and
// a CSRF state token, builds the authorization URL, and makes a best-effort
// attempt to open it in a browser; launch failure is only logged.
func (m *SessionManager) StartFlow(ctx context.Context) (*FlowStart, error) {
	if m.HasValidCredential(ctx) {
		return &FlowStart{AlreadyAuthenticated: true}, nil
	}

	m.mu.Lock()
	if m.sess != nil {
		url := m.sess.authURL
		m.mu.Unlock()
		return &FlowStart{AuthorizationURL: url, Instructions: flowInstructions}, nil
	}
	if m.flowActive {
		// Another caller is mid-way through building a session. Wait
		// briefly for it to land instead of racing it to create a second.
		m.mu.Unlock()
		if start := m.awaitSession(); start != nil {
			return start, nil
		}
		m.mu.Lock()
		if m.sess != nil {
			url := m.sess.authURL
			m.mu.Unlock()
			return &FlowStart{AuthorizationURL: url, Instructions: flowInstructions}, nil
		}
	}
	m.flowActive = true
	m.mu.Unlock()

	verifier := oauth2.GenerateVerifier()
	// The state token reuses the verifier's entropy source.
	state := oauth2.GenerateVerifier()

	cfg := &oauth2.Config{
		ClientID:    m.clientID,
		RedirectURL: m.redirectURI,
		Scopes:      strings.Split(m.scope, " "),
		Endpoint: oauth2.Endpoint{
			AuthURL:  m.authURL,
			TokenURL: m.tokenURL,
		},
	}
	authURL := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("code", "true"),
	)

	sess := &session{
		id:       uuid.NewString(),
		verifier: verifier,
		state:    state,
		authURL:  authURL,
	}

	m.mu.Lock()
	m.sess = sess
	m.phase = phaseAwaitingCode
	m.mu.Unlock()

	if err := m.openBrowser(authURL); err != nil {
		log.Printf("auth: could not open browser for session %s: %v (visit the URL manually)", sess.id, err)
	}

	return &FlowStart{AuthorizationURL: authURL, Instructions: flowInstructions}, nil
}

// awaitSession polls briefly for a session being created by a racing
// StartFlow. Returns nil if none appears within the bound.
func (m *SessionManager) awaitSession() *FlowStart {
	for i := 0; i < 20; i++ {
		time.Sleep(10 * time.Millisecond)
		m.mu.Lock()
		if m.sess != nil {
			url := m.sess.authURL
			m.mu.Unlock()
			return &FlowStart{AuthorizationURL: url, Instructions: flowInstructions}
		}
		if !m.flowActive {
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
	}
	return nil
}

// CompleteFlow exchanges a pasted authorization input for a token pair and
// persists the resulting credential. On failure only the completion attempt
// is reset: the session survives so the caller can retry without reopening
// the browser authorization step.
func (m *SessionManager) CompleteFlow(ctx context.Context, rawInput string) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return types.ErrNoActiveSession
	}
	if m.completing {
		m.mu.Unlock()
		return types.ErrCompletionInProgress
	}
	m.completing = true
	m.phase = phaseCompleting
	sess := m.sess
	m.mu.Unlock()

	code, state := NormalizeAuthCode(rawInput)
	if len(code) < minCodeLength {
		m.resetCompletion()
		return &types.InvalidCodeError{Length: len(code), Min: minCodeLength}
	}
	if state == "" {
		// Callback pages that omit the state echo the verifier instead.
		// Verifier and state then collapse into one secret, weakening the
		// CSRF separation; flagged for security review.
		state = sess.verifier
	}

	token, err := m.exchangeCode(ctx, code, state, sess.verifier)
	if err != nil {
		m.resetCompletion()
		return err
	}

	cred := NewOAuthCredential(token.AccessToken, token.RefreshToken, time.Duration(token.ExpiresIn)*time.Second)
	if err := m.store.Set(ProviderKey, &cred); err != nil {
		m.resetCompletion()
		return err
	}

	m.mu.Lock()
	m.sess = nil
	m.flowActive = false
	m.completing = false
	m.phase = phaseIdle
	m.mu.Unlock()

	log.Printf("auth: session %s completed, credential stored", sess.id)
	return nil
}

// resetCompletion releases the completion guard while keeping the session
// alive for a retry.
func (m *SessionManager) resetCompletion() {
	m.mu.Lock()
	m.completing = false
	m.phase = phaseAwaitingCode
	m.mu.Unlock()
}

// CancelFlow clears the session and all guard flags unconditionally. It is
// idempotent and a no-op when no flow is active.
func (m *SessionManager) CancelFlow() {
	m.mu.Lock()
	m.sess = nil
	m.flowActive = false
	m.completing = false
	m.phase = phaseIdle
	m.mu.Unlock()
}

// AccessToken returns the current valid access token, refreshing an expired
// one through the token endpoint when a refresh token exists. It returns ""
// when no credential exists or refresh fails; refresh failures are swallowed
// so callers can fall back to a non-OAuth credential path.
func (m *SessionManager) AccessToken(ctx context.Context) string {
	cred, err := m.store.Get(ProviderKey)
	if err != nil {
		log.Printf("auth: credential lookup failed: %v", err)
		return ""
	}
	if cred == nil || cred.Kind != CredentialKindOAuth {
		return ""
	}
	if cred.Valid(time.Now()) {
		return cred.AccessToken
	}
	if cred.RefreshToken == "" {
		return ""
	}

	refreshed, err := m.refreshToken(ctx, cred.RefreshToken)
	if err != nil {
		log.Printf("auth: token refresh failed: %v", err)
		return ""
	}
	if err := m.store.Set(ProviderKey, refreshed); err != nil {
		log.Printf("auth: failed to persist refreshed credential: %v", err)
	}
	return refreshed.AccessToken
}

// Logout removes the stored credential and cancels any active flow.
func (m *SessionManager) Logout() error {
	m.CancelFlow()
	return m.store.Remove(ProviderKey)
}

// tokenResponse is the token endpoint's JSON reply for both the initial
// exchange and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// exchangeCode trades an authorization code for a token pair. The Anthropic
// token endpoint takes a JSON body, not form encoding.
func (m *SessionManager) exchangeCode(ctx context.Context, code, state, verifier string) (*tokenResponse, error) {
	body := map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"state":         state,
		"client_id":     m.clientID,
		"redirect_uri":  m.redirectURI,
		"code_verifier": verifier,
	}
	return m.postToken(ctx, body)
}

// refreshToken renews an expired access token.
func (m *SessionManager) refreshToken(ctx context.Context, refreshToken string) (*Credential, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     m.clientID,
	}
	token, err := m.postToken(ctx, body)
	if err != nil {
		return nil, err
	}

	// Keep the old refresh token when the endpoint rotates only the access
	// token.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	cred := NewOAuthCredential(token.AccessToken, token.RefreshToken, time.Duration(token.ExpiresIn)*time.Second)
	return &cred, nil
}

func (m *SessionManager) postToken(ctx context.Context, body map[string]string) (*tokenResponse, error) {
	req, err := httputil.NewJSONRequest(ctx, http.MethodPost, m.tokenURL, body)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &types.TokenExchangeError{StatusCode: 0, Body: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !httputil.IsSuccess(resp.StatusCode) {
		return nil, &types.TokenExchangeError{
			StatusCode: resp.StatusCode,
			Body:       httputil.BodyExcerpt(resp.Body),
		}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &types.TokenExchangeError{StatusCode: resp.StatusCode, Body: "malformed token response: " + err.Error()}
	}
	if token.AccessToken == "" {
		return nil, &types.TokenExchangeError{StatusCode: resp.StatusCode, Body: "token response missing access token"}
	}
	return &token, nil
}
