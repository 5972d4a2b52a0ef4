package oauth2

import (
	"encoding/json"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
)

var linkedInEndpoints = endpoints{
	authorizeURL: "https://www.linkedin.com/oauth/v2/authorization",
	tokenURL:     "https://www.linkedin.com/oauth/v2/accessToken",
	identityURL:  "https://api.linkedin.com/v2/userinfo",
}

// linkedInUserInfo is the OpenID Connect userinfo response
type linkedInUserInfo struct {
	Sub       string `json:"sub"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
}

// NewLinkedInProvider returns the LinkedIn provider. LinkedIn expects the
// client secret in the form body rather than Basic credentials.
func NewLinkedInProvider(cfg config.ProviderConfig, client *Client) Provider {
	return newOAuthProvider(entity.ProviderLinkedIn, cfg, linkedInEndpoints, ClientAuthBody, parseLinkedInIdentity, client)
}

func parseLinkedInIdentity(body []byte) (*entity.Identity, error) {
	var info linkedInUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}

	displayName := info.Name
	if displayName == "" {
		displayName = info.GivenName
	}

	return &entity.Identity{
		ExternalID:  info.Sub,
		DisplayName: displayName,
	}, nil
}
