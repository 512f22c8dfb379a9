package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrelay/claudebridge/pkg/types"
)

// newTestManager wires a manager against a stub token endpoint with the
// browser launcher disabled.
func newTestManager(t *testing.T, handler http.HandlerFunc) (*SessionManager, *MemoryStore) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	mgr := NewSessionManager(store, SessionManagerOptions{
		TokenURL:    srv.URL,
		HTTPClient:  srv.Client(),
		OpenBrowser: func(string) error { return nil },
	})
	return mgr, store
}

func tokenHandler(t *testing.T, gotBody *map[string]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if gotBody != nil {
			*gotBody = body
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-new",
			"refresh_token": "refresh-new",
			"expires_in":    3600,
		})
	}
}

func TestStartFlow(t *testing.T) {
	t.Run("generates an authorization url with pkce parameters", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))

		start, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.False(t, start.AlreadyAuthenticated)
		assert.NotEmpty(t, start.Instructions)

		u, err := url.Parse(start.AuthorizationURL)
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "true", q.Get("code"))
		assert.Equal(t, DefaultClientID, q.Get("client_id"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, DefaultRedirectURI, q.Get("redirect_uri"))
		assert.Equal(t, DefaultScope, q.Get("scope"))
		assert.NotEmpty(t, q.Get("code_challenge"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("state"))
	})

	t.Run("is idempotent while a flow is active", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))

		first, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		second, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first.AuthorizationURL, second.AuthorizationURL)
	})

	t.Run("concurrent starts share one session", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))

		const callers = 8
		urls := make([]string, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				start, err := mgr.StartFlow(context.Background())
				if assert.NoError(t, err) {
					urls[i] = start.AuthorizationURL
				}
			}(i)
		}
		wg.Wait()

		for i := 1; i < callers; i++ {
			assert.Equal(t, urls[0], urls[i])
		}
	})

	t.Run("reports already authenticated with a valid credential", func(t *testing.T) {
		mgr, store := newTestManager(t, tokenHandler(t, nil))

		cred := NewOAuthCredential("access", "refresh", time.Hour)
		require.NoError(t, store.Set(ProviderKey, &cred))

		start, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.True(t, start.AlreadyAuthenticated)
		assert.Empty(t, start.AuthorizationURL)
	})

	t.Run("browser launch failure is non-fatal", func(t *testing.T) {
		srv := httptest.NewServer(tokenHandler(t, nil))
		t.Cleanup(srv.Close)

		mgr := NewSessionManager(NewMemoryStore(), SessionManagerOptions{
			TokenURL:    srv.URL,
			HTTPClient:  srv.Client(),
			OpenBrowser: func(string) error { return errors.New("no display") },
		})

		start, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, start.AuthorizationURL)
	})
}

func TestCompleteFlow(t *testing.T) {
	t.Run("fails without an active session", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))

		err := mgr.CompleteFlow(context.Background(), "abc123def456")
		assert.ErrorIs(t, err, types.ErrNoActiveSession)
	})

	t.Run("rejects an under-length code and keeps the session", func(t *testing.T) {
		var gotBody map[string]string
		mgr, store := newTestManager(t, tokenHandler(t, &gotBody))

		first, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)

		err = mgr.CompleteFlow(context.Background(), "abc")
		var invalid *types.InvalidCodeError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, 3, invalid.Length)

		// Session survives: same URL, and a valid retry still lands.
		second, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first.AuthorizationURL, second.AuthorizationURL)

		require.NoError(t, mgr.CompleteFlow(context.Background(), "abc123def456#somestate"))
		got, err := store.Get(ProviderKey)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "access-new", got.AccessToken)
	})

	t.Run("exchanges the code with verifier and parsed state", func(t *testing.T) {
		var gotBody map[string]string
		mgr, store := newTestManager(t, tokenHandler(t, &gotBody))

		_, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		require.NoError(t, mgr.CompleteFlow(context.Background(), "abc123def456#xyz789"))

		assert.Equal(t, "authorization_code", gotBody["grant_type"])
		assert.Equal(t, "abc123def456", gotBody["code"])
		assert.Equal(t, "xyz789", gotBody["state"])
		assert.Equal(t, DefaultClientID, gotBody["client_id"])
		assert.Equal(t, DefaultRedirectURI, gotBody["redirect_uri"])
		assert.NotEmpty(t, gotBody["code_verifier"])

		got, err := store.Get(ProviderKey)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, CredentialKindOAuth, got.Kind)
		assert.Equal(t, "access-new", got.AccessToken)
		assert.Equal(t, "refresh-new", got.RefreshToken)
		assert.Greater(t, got.ExpiresAt, time.Now().UnixMilli())
	})

	t.Run("falls back to the verifier when no state is supplied", func(t *testing.T) {
		var gotBody map[string]string
		mgr, _ := newTestManager(t, tokenHandler(t, &gotBody))

		_, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		require.NoError(t, mgr.CompleteFlow(context.Background(), "abc123def456"))

		assert.Equal(t, gotBody["code_verifier"], gotBody["state"])
	})

	t.Run("resets to idle after success", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))

		_, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		require.NoError(t, mgr.CompleteFlow(context.Background(), "abc123def456"))

		start, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)
		assert.True(t, start.AlreadyAuthenticated)

		err = mgr.CompleteFlow(context.Background(), "abc123def456")
		assert.ErrorIs(t, err, types.ErrNoActiveSession)
	})

	t.Run("surfaces a token endpoint failure and allows retry", func(t *testing.T) {
		var calls int
		mgr, store := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-new",
				"refresh_token": "refresh-new",
				"expires_in":    3600,
			})
		})

		_, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)

		err = mgr.CompleteFlow(context.Background(), "abc123def456")
		var exchange *types.TokenExchangeError
		require.ErrorAs(t, err, &exchange)
		assert.Equal(t, http.StatusBadRequest, exchange.StatusCode)
		assert.Contains(t, exchange.Body, "invalid_grant")

		require.NoError(t, mgr.CompleteFlow(context.Background(), "abc123def456"))
		got, err := store.Get(ProviderKey)
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("concurrent completions spend the code exactly once", func(t *testing.T) {
		release := make(chan struct{})
		mgr, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-new",
				"refresh_token": "refresh-new",
				"expires_in":    3600,
			})
		})

		_, err := mgr.StartFlow(context.Background())
		require.NoError(t, err)

		firstErr := make(chan error, 1)
		go func() {
			firstErr <- mgr.CompleteFlow(context.Background(), "abc123def456")
		}()

		// Wait for the first completion to claim the guard, then race it.
		require.Eventually(t, func() bool {
			mgr.mu.Lock()
			defer mgr.mu.Unlock()
			return mgr.completing
		}, time.Second, time.Millisecond)

		err = mgr.CompleteFlow(context.Background(), "abc123def456")
		assert.ErrorIs(t, err, types.ErrCompletionInProgress)

		close(release)
		assert.NoError(t, <-firstErr)
	})
}

func TestCancelFlow(t *testing.T) {
	mgr, _ := newTestManager(t, tokenHandler(t, nil))

	_, err := mgr.StartFlow(context.Background())
	require.NoError(t, err)

	mgr.CancelFlow()
	mgr.CancelFlow() // idempotent

	err = mgr.CompleteFlow(context.Background(), "abc123def456")
	assert.ErrorIs(t, err, types.ErrNoActiveSession)
}

func TestAccessToken(t *testing.T) {
	t.Run("returns empty with no credential", func(t *testing.T) {
		mgr, _ := newTestManager(t, tokenHandler(t, nil))
		assert.Empty(t, mgr.AccessToken(context.Background()))
		assert.False(t, mgr.HasValidCredential(context.Background()))
	})

	t.Run("returns a valid stored token without refreshing", func(t *testing.T) {
		var calls int
		mgr, store := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})

		cred := NewOAuthCredential("access-live", "refresh", time.Hour)
		require.NoError(t, store.Set(ProviderKey, &cred))

		assert.Equal(t, "access-live", mgr.AccessToken(context.Background()))
		assert.Zero(t, calls)
	})

	t.Run("refreshes an expired token and persists the result", func(t *testing.T) {
		var gotBody map[string]string
		mgr, store := newTestManager(t, tokenHandler(t, &gotBody))

		cred := NewOAuthCredential("access-stale", "refresh-old", -time.Minute)
		require.NoError(t, store.Set(ProviderKey, &cred))

		assert.Equal(t, "access-new", mgr.AccessToken(context.Background()))
		assert.Equal(t, "refresh_token", gotBody["grant_type"])
		assert.Equal(t, "refresh-old", gotBody["refresh_token"])
		assert.Equal(t, DefaultClientID, gotBody["client_id"])

		stored, err := store.Get(ProviderKey)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "access-new", stored.AccessToken)
		assert.True(t, mgr.HasValidCredential(context.Background()))
	})

	t.Run("keeps the old refresh token when the endpoint omits one", func(t *testing.T) {
		mgr, store := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "access-new",
				"expires_in":   3600,
			})
		})

		cred := NewOAuthCredential("access-stale", "refresh-keep", -time.Minute)
		require.NoError(t, store.Set(ProviderKey, &cred))

		assert.Equal(t, "access-new", mgr.AccessToken(context.Background()))
		stored, err := store.Get(ProviderKey)
		require.NoError(t, err)
		assert.Equal(t, "refresh-keep", stored.RefreshToken)
	})

	t.Run("swallows refresh failures", func(t *testing.T) {
		mgr, store := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		cred := NewOAuthCredential("access-stale", "refresh-dead", -time.Minute)
		require.NoError(t, store.Set(ProviderKey, &cred))

		assert.Empty(t, mgr.AccessToken(context.Background()))
		assert.False(t, mgr.HasValidCredential(context.Background()))
	})

	t.Run("treats an expired token without refresh token as absent", func(t *testing.T) {
		var calls int
		mgr, store := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
		})

		cred := NewOAuthCredential("access-stale", "", -time.Minute)
		require.NoError(t, store.Set(ProviderKey, &cred))

		assert.Empty(t, mgr.AccessToken(context.Background()))
		assert.Zero(t, calls)
	})
}

func TestLogout(t *testing.T) {
	mgr, store := newTestManager(t, tokenHandler(t, nil))

	_, err := mgr.StartFlow(context.Background())
	require.NoError(t, err)
	cred := NewOAuthCredential("access", "refresh", time.Hour)
	require.NoError(t, store.Set(ProviderKey, &cred))

	require.NoError(t, mgr.Logout())

	got, err := store.Get(ProviderKey)
	require.NoError(t, err)
	assert.Nil(t, got)
	err = mgr.CompleteFlow(context.Background(), "abc123def456")
	assert.ErrorIs(t, err, types.ErrNoActiveSession)
}
