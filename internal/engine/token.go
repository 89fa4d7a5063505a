package engine

import "github.com/google/uuid"

// TokenGenerator creates correlation tokens. Every reset and every rebuild
// run gets one, and each event it emits carries it.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default TokenGenerator. Its tokens sort by
// creation time, so journal entries of consecutive runs group in order.
type UUIDv7Generator struct{}

// Generate panics only if the system random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
