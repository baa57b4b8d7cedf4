package auth

import (
	"context"
	"fmt"

	"github.com/semsearch/semsearch/internal/shared"
	"github.com/semsearch/semsearch/internal/users"
)

// Verifier turns a bearer token into a stored identity.
type Verifier struct {
	issuer *TokenIssuer
}

// NewVerifier constructs a Verifier.
func NewVerifier(issuer *TokenIssuer) *Verifier {
	return &Verifier{issuer: issuer}
}

// Verify returns the identity named by token. Missing, malformed, expired or
// wrongly signed tokens and subjects without a stored identity all yield an
// Unauthenticated error. Store failures are returned as is.
func (v *Verifier) Verify(ctx context.Context, token string, store IdentityStore) (*users.User, error) {
	if token == "" {
		return nil, shared.Unauthenticated("Not authenticated")
	}
	subject, err := v.issuer.Parse(token)
	if err != nil {
		return nil, shared.Unauthenticated("Could not validate credentials")
	}
	user, err := store.GetByID(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("auth: load identity: %w", err)
	}
	if user == nil {
		return nil, shared.Unauthenticated("Could not validate credentials")
	}
	return user, nil
}
