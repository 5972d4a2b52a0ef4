package oauth2

import (
	"context"
	"fmt"

	"crosspost-connect/internal/config"
	"crosspost-connect/internal/domain/entity"
)

// ClientAuthMethod selects how client credentials reach the token endpoint
type ClientAuthMethod int

const (
	// ClientAuthBasic sends client_id:client_secret as HTTP Basic credentials
	ClientAuthBasic ClientAuthMethod = iota
	// ClientAuthBody sends client_secret as a form field
	ClientAuthBody
)

// Provider is the uniform operation set every publishing platform implements
type Provider interface {
	Name() entity.Provider

	// Scopes returns the scopes requested on authorization
	Scopes() []string

	// BuildAuthorizeURL returns the consent URL bound to state and challenge
	BuildAuthorizeURL(state, codeChallenge string) string

	// ExchangeCode trades an authorization code and PKCE verifier for tokens.
	// Fails with a *entity.ProviderError matching entity.ErrTokenExchangeFailed.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*entity.TokenResult, error)

	// RefreshToken obtains a new access token. Fails with a
	// *entity.ProviderError matching entity.ErrRefreshFailed.
	RefreshToken(ctx context.Context, refreshToken string) (*entity.TokenResult, error)

	// FetchIdentity returns the account the access token belongs to
	FetchIdentity(ctx context.Context, accessToken string) (*entity.Identity, error)
}

// identityParser adapts a provider-specific identity envelope
type identityParser func(body []byte) (*entity.Identity, error)

// endpoints are the defaults used when config leaves a URL empty
type endpoints struct {
	authorizeURL string
	tokenURL     string
	identityURL  string
}

// oauthProvider implements Provider over the generic authorization code +
// PKCE protocol. Provider differences live in its endpoints, client auth
// method and identity parser.
type oauthProvider struct {
	name          entity.Provider
	cfg           config.ProviderConfig
	clientAuth    ClientAuthMethod
	parseIdentity identityParser
	client        *Client
}

func newOAuthProvider(name entity.Provider, cfg config.ProviderConfig, defaults endpoints, auth ClientAuthMethod, parse identityParser, client *Client) *oauthProvider {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = defaults.authorizeURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.tokenURL
	}
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = defaults.identityURL
	}

	return &oauthProvider{
		name:          name,
		cfg:           cfg,
		clientAuth:    auth,
		parseIdentity: parse,
		client:        client,
	}
}

func (p *oauthProvider) Name() entity.Provider {
	return p.name
}

func (p *oauthProvider) Scopes() []string {
	return append([]string(nil), p.cfg.Scopes...)
}

func (p *oauthProvider) BuildAuthorizeURL(state, codeChallenge string) string {
	return BuildAuthorizeURL(p.cfg.AuthorizeURL, p.cfg.ClientID, p.cfg.RedirectURI, state, codeChallenge, p.cfg.Scopes)
}

func (p *oauthProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*entity.TokenResult, error) {
	form := map[string][]string{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.cfg.RedirectURI},
		"code_verifier": {codeVerifier},
	}

	return p.client.requestToken(ctx, tokenRequest{
		provider:     p.name,
		operation:    operationExchangeCode,
		failure:      entity.ErrTokenExchangeFailed,
		tokenURL:     p.cfg.TokenURL,
		clientID:     p.cfg.ClientID,
		clientSecret: p.cfg.ClientSecret,
		clientAuth:   p.clientAuth,
		form:         form,
	})
}

func (p *oauthProvider) RefreshToken(ctx context.Context, refreshToken string) (*entity.TokenResult, error) {
	form := map[string][]string{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return p.client.requestToken(ctx, tokenRequest{
		provider:     p.name,
		operation:    operationRefreshToken,
		failure:      entity.ErrRefreshFailed,
		tokenURL:     p.cfg.TokenURL,
		clientID:     p.cfg.ClientID,
		clientSecret: p.cfg.ClientSecret,
		clientAuth:   p.clientAuth,
		form:         form,
	})
}

func (p *oauthProvider) FetchIdentity(ctx context.Context, accessToken string) (*entity.Identity, error) {
	body, err := p.client.getJSON(ctx, p.name, p.cfg.IdentityURL, accessToken)
	if err != nil {
		return nil, err
	}

	identity, err := p.parseIdentity(body)
	if err != nil || identity.ExternalID == "" {
		return nil, &entity.ProviderError{
			Kind:     entity.ErrIdentityFetchFailed,
			Provider: p.name,
			// Identity calls only reach the parser on 2xx
			StatusCode: 200,
			Body:       truncateString(string(body), maxBodyLogLength),
		}
	}

	return identity, nil
}

// Registry selects a Provider by its enum value
type Registry struct {
	providers map[entity.Provider]Provider
}

func NewRegistry(cfg *config.Config, client *Client) *Registry {
	r := &Registry{providers: make(map[entity.Provider]Provider)}

	if cfg.Providers.Twitter.Enabled {
		r.Register(NewTwitterProvider(cfg.Providers.Twitter, client))
	}
	if cfg.Providers.LinkedIn.Enabled {
		r.Register(NewLinkedInProvider(cfg.Providers.LinkedIn, client))
	}

	return r
}

// NewRegistryOf builds a registry from already constructed providers
func NewRegistryOf(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[entity.Provider]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider or entity.ErrProviderDisabled when it is not configured
func (r *Registry) Get(name entity.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrProviderDisabled, name)
	}
	return p, nil
}
