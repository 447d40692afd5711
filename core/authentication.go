package core

// AuthKind distinguishes first-party sessions from third-party tokens.
type AuthKind string

const (
	// AuthKindSession is a first-party session backed by an access/refresh pair.
	AuthKindSession AuthKind = "session"

	// AuthKindThirdParty is an externally issued token the backend verifies
	// against the configured third-party provider. It carries no refresh token.
	AuthKindThirdParty AuthKind = "third_party"
)

// Authentication represents who is logged in. At most one Authentication is
// persisted at a time; replacing it with one for a different user requires
// tearing down the previous session first.
type Authentication struct {
	Kind                AuthKind `json:"kind"`
	AccessToken         string   `json:"accessToken"`
	RefreshToken        string   `json:"refreshToken,omitempty"`
	UserID              string   `json:"userId"`
	ThirdPartyProvider  string   `json:"thirdPartyProvider,omitempty"`
	ThirdPartyTokenType string   `json:"thirdPartyTokenType,omitempty"`
}

// SameUser reports whether both records belong to the same logical user.
func (a *Authentication) SameUser(other *Authentication) bool {
	if a == nil || other == nil {
		return false
	}
	return a.UserID == other.UserID
}

// AuthResult is the outcome of a successful authentication call.
type AuthResult struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	// RequiredAction is set instead of tokens when the backend demands a
	// follow-up step (e.g. email verification) before issuing a session.
	RequiredAction string
}

// OAuthInit holds the provider authorization URL and the correlation key used
// to poll for completion.
type OAuthInit struct {
	URL string
	Key string
}

// SIWEChallenge is the nonce handed out for sign-in-with-wallet flows.
type SIWEChallenge struct {
	Address   string
	Nonce     string
	ExpiresAt int64
}

// ChallengeState is the ephemeral PKCE pair persisted between a reset or
// verification request and its confirmation. Consumed exactly once.
type ChallengeState struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

// PKCEChallenge is the hashed challenge sent to the backend on request.
type PKCEChallenge struct {
	CodeChallenge string `json:"codeChallenge"`
	Method        string `json:"method"`
}

// CodeChallengeMethodS256 is the only challenge method the backend accepts.
const CodeChallengeMethodS256 = "S256"
