package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"triviacast-service/internal/domain"
	"triviacast-service/internal/farcaster"

	"go.uber.org/zap"
)

// TokenVerifier validates Quick Auth bearer tokens.
type TokenVerifier interface {
	Verify(token string) (int64, *farcaster.QuickAuthClaims, error)
}

type fidKey struct{}

// FIDFromContext returns the Farcaster ID of the authenticated caller.
func FIDFromContext(ctx context.Context) (int64, bool) {
	fid, ok := ctx.Value(fidKey{}).(int64)
	return fid, ok
}

type authenticator struct {
	verifier TokenVerifier
	log      *zap.Logger
}

// require rejects requests without a valid token. A nil verifier disables auth.
func (a authenticator) require(next http.Handler) http.Handler {
	return a.wrap(next, true)
}

// optional attaches the FID when a token is present but never demands one.
func (a authenticator) optional(next http.Handler) http.Handler {
	return a.wrap(next, false)
}

func (a authenticator) wrap(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			if required {
				writeError(w, a.log, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		fid, _, err := a.verifier.Verify(token)
		if err != nil {
			writeError(w, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), fidKey{}, fid)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
