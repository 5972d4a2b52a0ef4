package oauth2

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"crosspost-connect/internal/domain/entity"
)

const (
	// 32 bytes encode to a 43-character verifier, the RFC 7636 minimum length
	verifierEntropyBytes = 32
	stateEntropyBytes    = 32

	CodeChallengeMethodS256 = "S256"
)

// GeneratePKCE returns a fresh verifier and its S256 challenge
func GeneratePKCE() (entity.PKCEPair, error) {
	verifier, err := randomURLSafe(verifierEntropyBytes)
	if err != nil {
		return entity.PKCEPair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	return entity.PKCEPair{
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeFor(verifier),
	}, nil
}

// ChallengeFor derives the S256 code challenge of a verifier
func ChallengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a random CSRF state token
func GenerateState() (string, error) {
	state, err := randomURLSafe(stateEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}

func randomURLSafe(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
