package users

import (
	"context"
)

var profileCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the authenticated profile in the given context
func WithContext(r context.Context, profile *Profile) context.Context {
	return context.WithValue(r, profileCtxKey, profile)
}

// FromContext finds the authenticated profile from the context.
func FromContext(ctx context.Context) (*Profile, bool) {
	raw, ok := ctx.Value(profileCtxKey).(*Profile)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the bearer claims in the given context
func WithClaimsContext(r context.Context, claims *Claims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the bearer claims from the context
func GetClaims(ctx context.Context) (*Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok && raw != nil
}
