package entity

// TokenResult is the token endpoint response after exchange or refresh
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds, 0 when the provider gave no expiry
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ExpiresAt converts ExpiresIn into an absolute epoch-second deadline
func (t *TokenResult) ExpiresAt(nowUnix int64) *int64 {
	if t.ExpiresIn <= 0 {
		return nil
	}
	at := nowUnix + t.ExpiresIn
	return &at
}

// Identity is the provider-side account the token belongs to
type Identity struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
}
