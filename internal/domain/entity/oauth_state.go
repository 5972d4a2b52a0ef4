package entity

import "time"

// MetadataCodeVerifier is the metadata key holding the PKCE verifier
const MetadataCodeVerifier = "code_verifier"

// PKCEPair is a one-time verifier/challenge pair. It is never persisted as a unit.
type PKCEPair struct {
	CodeVerifier  string
	CodeChallenge string
}

// OAuthState is a short-lived, single-use record linking a CSRF state token
// to the user who started the authorization flow
type OAuthState struct {
	State      string            `json:"state" db:"state"`
	Provider   Provider          `json:"provider" db:"provider"`
	UserID     string            `json:"user_id" db:"user_id"`
	Metadata   map[string]string `json:"metadata" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	TTLSeconds int64             `json:"ttl_seconds" db:"ttl_seconds"`
	Consumed   bool              `json:"consumed" db:"consumed"`
}

// ExpiresAt returns the instant after which the state can no longer be consumed
func (s *OAuthState) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.TTLSeconds) * time.Second)
}

// IsExpired reports whether the state has outlived its TTL at the given time
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// ConsumedState is the payload returned by a successful validate-and-consume
type ConsumedState struct {
	UserID   string
	Metadata map[string]string
}

// CodeVerifier returns the PKCE verifier carried in the metadata
func (c *ConsumedState) CodeVerifier() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataCodeVerifier]
}
