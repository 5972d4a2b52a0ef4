package oauth2

import (
	"encoding/json"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
)

var twitterEndpoints = endpoints{
	authorizeURL: "https://twitter.com/i/oauth2/authorize",
	tokenURL:     "https://api.twitter.com/2/oauth2/token",
	identityURL:  "https://api.twitter.com/2/users/me",
}

// twitterUser is the envelope of GET /2/users/me
type twitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"data"`
}

func NewTwitterProvider(cfg config.ProviderConfig, client *Client) Provider {
	return newOAuthProvider(entity.ProviderTwitter, cfg, twitterEndpoints, ClientAuthBasic, parseTwitterIdentity, client)
}

func parseTwitterIdentity(body []byte) (*entity.Identity, error) {
	var user twitterUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}

	displayName := user.Data.Username
	if displayName == "" {
		displayName = user.Data.Name
	}

	return &entity.Identity{
		ExternalID:  user.Data.ID,
		DisplayName: displayName,
	}, nil
}
