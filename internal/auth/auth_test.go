package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	uid    string
	claims map[string]interface{}
	err    error
}

func (f fakeTokens) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fbauth.Token{UID: f.uid, Claims: f.claims}, nil
}

func TestHeaderVerifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	state, err := HeaderVerifier{}.Verify(req)
	require.NoError(t, err)
	assert.False(t, state.Authenticated())

	req.Header.Set(UserIDHeader, " user-1 ")
	state, err = HeaderVerifier{}.Verify(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", state.AccountID)
}

func TestFirebaseVerifier(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		tokens    fakeTokens
		wantState State
		wantErr   bool
	}{
		{name: "no header is anonymous", tokens: fakeTokens{uid: "u1"}, wantState: Anonymous()},
		{name: "valid token", header: "Bearer abc", tokens: fakeTokens{uid: "u1"}, wantState: SignedIn("u1")},
		{name: "rejected token", header: "Bearer abc", tokens: fakeTokens{err: errors.New("expired")}, wantErr: true},
		{name: "not a bearer", header: "Basic abc", tokens: fakeTokens{uid: "u1"}, wantErr: true},
		{name: "empty uid", header: "Bearer abc", tokens: fakeTokens{uid: " "}, wantErr: true},
		{
			name:      "admin claim",
			header:    "Bearer abc",
			tokens:    fakeTokens{uid: "u1", claims: map[string]interface{}{"admin": true}},
			wantState: State{AccountID: "u1", Admin: true},
		},
		{
			name:      "admin claim not true",
			header:    "Bearer abc",
			tokens:    fakeTokens{uid: "u1", claims: map[string]interface{}{"admin": "yes"}},
			wantState: SignedIn("u1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			state, err := NewFirebaseVerifier(tt.tokens).Verify(req)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, state)
		})
	}
}

func TestMiddleware(t *testing.T) {
	var seen State
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(NewFirebaseVerifier(fakeTokens{uid: "u1"}), nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", seen.AccountID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHENTICATED")
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		state    *State
		wantCode int
	}{
		{name: "anonymous", wantCode: http.StatusUnauthorized},
		{name: "signed in without access", state: &State{AccountID: "u2"}, wantCode: http.StatusForbidden},
		{name: "listed account", state: &State{AccountID: "ops-1"}, wantCode: http.StatusNoContent},
		{name: "admin claim", state: &State{AccountID: "u3", Admin: true}, wantCode: http.StatusNoContent},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAdmin([]string{" ops-1 ", ""}, nil)(next)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/products", nil)
			if tt.state != nil {
				req = req.WithContext(WithState(req.Context(), *tt.state))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRequireAdmin_HeaderCannotClaimAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(HeaderVerifier{}, nil)(RequireAdmin(nil, nil)(next))

	req := httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil)
	req.Header.Set(UserIDHeader, "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}
