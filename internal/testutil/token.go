package testutil

// DefaultToken is used by FixedTokenGenerator when no token is given.
const DefaultToken = "test-token-default"

// FixedTokenGenerator hands out one token for every run, so golden traces
// of the same scenario are byte-identical. It satisfies engine.TokenGenerator.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator returns a generator for token, or DefaultToken
// when token is empty.
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = DefaultToken
	}
	return &FixedTokenGenerator{token: token}
}

func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
