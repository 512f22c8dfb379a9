package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/modelrelay/claudebridge/internal/httputil"
	"github.com/modelrelay/claudebridge/pkg/types"
)

const (
	// DefaultBaseURL is the Anthropic API origin.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent on every request.
	APIVersion = "2023-06-01"

	// oauthBeta enables bearer-token access to the Messages API.
	oauthBeta = "oauth-2025-04-20"

	// APIKeyEnvVar is consulted when no key or OAuth credential is
	// configured.
	APIKeyEnvVar = "ANTHROPIC_API_KEY"

	messagesPath = "/v1/messages"
)

// TokenSource yields OAuth access tokens. *auth.SessionManager implements
// it; an empty string means no token is available.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// GeneratorOptions configures a Generator. Zero-value fields use defaults.
type GeneratorOptions struct {
	BaseURL string

	// DefaultModel is applied to requests that leave the model field
	// empty.
	DefaultModel string

	APIKey     string
	Tokens     TokenSource
	HTTPClient *http.Client

	// Limiter throttles outbound API calls. Nil means unlimited.
	Limiter *rate.Limiter
}

// Generator is a content generator backed by the Anthropic Messages API.
// It is stateless between calls and safe for concurrent use.
type Generator struct {
	baseURL string
	model   string
	apiKey  string
	tokens  TokenSource
	client  *http.Client
	limiter *rate.Limiter
}

// NewGenerator creates a generator. Authentication is resolved per request:
// the configured APIKey wins, then the ANTHROPIC_API_KEY environment
// variable, then an OAuth access token from Tokens.
func NewGenerator(opts GeneratorOptions) *Generator {
	g := &Generator{
		baseURL: opts.BaseURL,
		model:   opts.DefaultModel,
		apiKey:  opts.APIKey,
		tokens:  opts.Tokens,
		client:  opts.HTTPClient,
		limiter: opts.Limiter,
	}
	if g.baseURL == "" {
		g.baseURL = DefaultBaseURL
	}
	if g.client == nil {
		g.client = httputil.DefaultClient()
	}
	if g.limiter == nil {
		g.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return g
}

// GenerateContent performs a blocking generation call and returns the
// complete response.
func (g *Generator) GenerateContent(ctx context.Context, req *types.GenerateContentRequest) (*types.GenerateContentResponse, error) {
	resp, err := g.postMessages(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !httputil.IsSuccess(resp.StatusCode) {
		return nil, &types.ProviderError{
			StatusCode: resp.StatusCode,
			Body:       httputil.BodyExcerpt(resp.Body),
			Operation:  "generateContent",
		}
	}

	var wire messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return fromMessagesResponse(&wire), nil
}

// GenerateContentStream performs a streaming generation call. The returned
// stream must be closed by the caller, including when it is abandoned before
// exhaustion.
func (g *Generator) GenerateContentStream(ctx context.Context, req *types.GenerateContentRequest) (types.GenerateContentStream, error) {
	resp, err := g.postMessages(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if !httputil.IsSuccess(resp.StatusCode) {
		body := httputil.BodyExcerpt(resp.Body)
		_ = resp.Body.Close()
		return nil, &types.ProviderError{
			StatusCode: resp.StatusCode,
			Body:       body,
			Operation:  "generateContentStream",
		}
	}
	return newStream(resp.Body), nil
}

// CountTokens estimates the token total for the request contents. It never
// touches the network; the byte-ratio heuristic in EstimateTokens is applied
// to every text part.
func (g *Generator) CountTokens(ctx context.Context, req *types.GenerateContentRequest) (*types.CountTokensResponse, error) {
	return &types.CountTokensResponse{TotalTokens: estimateContents(req.Contents)}, nil
}

// EmbedContent is not offered by the Messages API.
func (g *Generator) EmbedContent(ctx context.Context, req *types.EmbedContentRequest) (*types.EmbedContentResponse, error) {
	return nil, fmt.Errorf("embedContent: %w", types.ErrUnsupportedOperation)
}

func (g *Generator) postMessages(ctx context.Context, req *types.GenerateContentRequest, stream bool) (*http.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	wire := toMessagesRequest(req, stream)
	if wire.Model == "" {
		wire.Model = g.model
	}

	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodPost, g.baseURL+messagesPath, wire)
	if err != nil {
		return nil, err
	}
	if err := g.setAuthHeaders(ctx, httpReq); err != nil {
		return nil, err
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return g.client.Do(httpReq)
}

// setAuthHeaders attaches credentials, trying the configured key, then the
// environment, then an OAuth access token. API keys use the x-api-key
// header; OAuth uses a bearer token plus the beta header. Both carry the
// API version.
func (g *Generator) setAuthHeaders(ctx context.Context, req *http.Request) error {
	req.Header.Set("anthropic-version", APIVersion)

	key := g.apiKey
	if key == "" {
		key = os.Getenv(APIKeyEnvVar)
	}
	if key != "" {
		req.Header.Set("x-api-key", key)
		return nil
	}

	if g.tokens != nil {
		if token := g.tokens.AccessToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("anthropic-beta", oauthBeta)
			return nil
		}
	}

	return types.ErrNoAuthentication
}
