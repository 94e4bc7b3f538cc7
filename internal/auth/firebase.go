package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// AdminClaim is the Firebase custom claim that grants admin access.
const AdminClaim = "admin"

// TokenVerifier is the part of the Firebase auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier authenticates requests carrying a Firebase ID token in the
// Authorization header.
type FirebaseVerifier struct {
	tokens TokenVerifier
}

func NewFirebaseVerifier(tokens TokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{tokens: tokens}
}

// NewFirebaseAuthClient initializes the Firebase app for projectID and
// returns its auth client.
func NewFirebaseAuthClient(ctx context.Context, projectID, credentialsFile string) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app init failed: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth init failed: %w", err)
	}
	return client, nil
}

func (v *FirebaseVerifier) Verify(r *http.Request) (State, error) {
	idToken, present := bearerToken(r)
	if !present {
		return Anonymous(), nil
	}
	if idToken == "" {
		return State{}, fmt.Errorf("%w: malformed bearer token", ErrUnauthenticated)
	}

	token, err := v.tokens.VerifyIDToken(r.Context(), idToken)
	if err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	uid := strings.TrimSpace(token.UID)
	if uid == "" {
		return State{}, fmt.Errorf("%w: token has no uid", ErrUnauthenticated)
	}
	state := SignedIn(uid)
	state.Admin = token.Claims[AdminClaim] == true
	return state, nil
}
