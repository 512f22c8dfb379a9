package auth

import "time"

// Credential kinds. A record is either an OAuth token pair or a static API
// key, discriminated by Kind.
const (
	CredentialKindOAuth  = "oauth"
	CredentialKindAPIKey = "apiKey"
)

// Credential is the flat persisted credential record.
type Credential struct {
	Kind string `json:"kind"`

	// OAuth fields.
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAt is the absolute expiry in epoch milliseconds.
	ExpiresAt int64 `json:"expiresAtEpochMillis,omitempty"`

	// API key field.
	Key string `json:"key,omitempty"`
}

// NewOAuthCredential builds an OAuth credential expiring expiresIn from now.
func NewOAuthCredential(accessToken, refreshToken string, expiresIn time.Duration) Credential {
	return Credential{
		Kind:         CredentialKindOAuth,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(expiresIn).UnixMilli(),
	}
}

// NewAPIKeyCredential builds a static API key credential.
func NewAPIKeyCredential(key string) Credential {
	return Credential{Kind: CredentialKindAPIKey, Key: key}
}

// Valid reports whether the credential is usable as of now. An OAuth
// credential is valid only while unexpired; an expired one must be refreshed
// before use or treated as absent.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil {
		return false
	}
	switch c.Kind {
	case CredentialKindAPIKey:
		return c.Key != ""
	case CredentialKindOAuth:
		return c.AccessToken != "" && now.UnixMilli() < c.ExpiresAt
	}
	return false
}
