package oauth2

import (
	"net/url"
	"strings"
)

// BuildAuthorizeURL composes the provider consent URL for the authorization
// code flow with PKCE. The caller must already have stored the state.
func BuildAuthorizeURL(endpoint, clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)
	params.Set("scope", strings.Join(scopes, " "))
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", CodeChallengeMethodS256)

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
