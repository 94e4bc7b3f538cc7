// Package auth produces the authentication state signal that drives cart
// reconciliation.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// State is one emission of the authentication signal. An empty AccountID
// means anonymous. Admin is set from the verified credentials only.
type State struct {
	AccountID string
	Admin     bool
}

func Anonymous() State {
	return State{}
}

func SignedIn(accountID string) State {
	return State{AccountID: strings.TrimSpace(accountID)}
}

func (s State) Authenticated() bool {
	return s.AccountID != ""
}

type ctxKey struct{}

func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the state stored by Middleware, or Anonymous.
func FromContext(ctx context.Context) State {
	s, _ := ctx.Value(ctxKey{}).(State)
	return s
}

// Verifier resolves the state of a request. A request without credentials is
// anonymous; a request with credentials that do not verify is an error.
type Verifier interface {
	Verify(r *http.Request) (State, error)
}

const UserIDHeader = "X-User-ID"

// HeaderVerifier trusts the X-User-ID header set by an upstream gateway.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(r *http.Request) (State, error) {
	return SignedIn(r.Header.Get(UserIDHeader)), nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", true
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
}
