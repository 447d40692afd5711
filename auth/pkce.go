package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/vaultline/vaultline/core"
)

// newChallenge builds a fresh PKCE exchange: a random verifier, its S256
// challenge, and a random state binding the confirmation to this request.
func newChallenge() (*core.ChallengeState, core.PKCEChallenge, error) {
	verifier, err := randomToken()
	if err != nil {
		return nil, core.PKCEChallenge{}, fmt.Errorf("failed to generate verifier: %w", err)
	}
	state, err := randomToken()
	if err != nil {
		return nil, core.PKCEChallenge{}, fmt.Errorf("failed to generate state: %w", err)
	}

	digest := sha256.Sum256([]byte(verifier))
	challenge := core.PKCEChallenge{
		CodeChallenge: base64.RawURLEncoding.EncodeToString(digest[:]),
		Method:        core.CodeChallengeMethodS256,
	}

	return &core.ChallengeState{State: state, Verifier: verifier}, challenge, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
