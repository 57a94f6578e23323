package auth

import (
	"context"
	"net/http"

	"github.com/curioswitch/go-usegcp/middleware/firebaseauth"

	"github.com/curioswitch/aichat/server/internal/entitlements"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	// UserID is the Firebase UID of the caller.
	UserID string

	// Tier is the account tier used for entitlement lookups.
	Tier entitlements.Tier
}

type identityContextKey struct{}

var identityContextKeyInstance = identityContextKey{}

// Middleware resolves the caller's identity from the Firebase token
// installed by the firebaseauth middleware. Users signed in anonymously
// are guests, all others are regular users. Requests without a token pass
// through unauthenticated.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := firebaseauth.TokenFromContext(r.Context())
			if tok != nil && tok.UID != "" {
				tier := entitlements.TierRegular
				if tok.Firebase.SignInProvider == "anonymous" {
					tier = entitlements.TierGuest
				}
				r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: tok.UID, Tier: tier}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKeyInstance, id)
}

// FromContext returns the caller's identity, or false when the request is
// unauthenticated.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKeyInstance).(Identity)
	return id, ok
}
