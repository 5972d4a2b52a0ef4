package entity

import "fmt"

// Provider identifies a third-party publishing platform
type Provider string

const (
	ProviderTwitter  Provider = "twitter"
	ProviderLinkedIn Provider = "linkedin"
)

// ParseProvider converts a path or query value into a known Provider
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderTwitter, ProviderLinkedIn:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) String() string {
	return string(p)
}
