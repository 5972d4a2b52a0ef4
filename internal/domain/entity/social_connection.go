package entity

import (
	"sort"
	"time"
)

// SocialConnection is a stored credential for one user's account on a provider
type SocialConnection struct {
	ID             int64     `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Provider       Provider  `json:"provider" db:"provider"`
	AccessToken    string    `json:"-" db:"access_token"`
	RefreshToken   string    `json:"-" db:"refresh_token"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	TokenExpiresAt *int64    `json:"token_expires_at,omitempty" db:"token_expires_at"` // epoch seconds, nil means no expiry
	Scopes         []string  `json:"scopes" db:"scopes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HasRefreshToken reports whether the provider issued a refresh token
func (c *SocialConnection) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// NewSocialConnection holds the fields needed to create a connection
type NewSocialConnection struct {
	UserID         string
	Provider       Provider
	AccessToken    string
	RefreshToken   string
	ExternalID     string
	DisplayName    string
	TokenExpiresAt *int64
	Scopes         []string
}

// TokenUpdate carries the new credential after a refresh
type TokenUpdate struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *int64
}

// OlderThan reports whether c was created before other. Ties on CreatedAt
// fall back to the lower ID.
func (c *SocialConnection) OlderThan(other *SocialConnection) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// SortMostRecentFirst orders connections so the most recently created one
// comes first
func SortMostRecentFirst(conns []*SocialConnection) {
	sort.SliceStable(conns, func(i, j int) bool {
		return conns[j].OlderThan(conns[i])
	})
}

// LatestForProvider returns the most recently created connection for the
// provider, or nil when there is none
func LatestForProvider(conns []*SocialConnection, provider Provider) *SocialConnection {
	var latest *SocialConnection
	for _, c := range conns {
		if c.Provider != provider {
			continue
		}
		if latest == nil || latest.OlderThan(c) {
			latest = c
		}
	}
	return latest
}
