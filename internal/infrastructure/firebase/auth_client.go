package firebase

import (
	"context"
	stderrors "errors"

	"firebase.google.com/go/v4/auth"

	"neighborly/pkg/errors"
)

type FirebaseAuthClient struct {
	client       *auth.Client
	checkRevoked bool
}

// NewFirebaseAuthClient verifies ID tokens. With checkRevoked every call also
// asks Firebase whether the user's sessions were revoked.
func NewFirebaseAuthClient(client *auth.Client, checkRevoked bool) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client:       client,
		checkRevoked: checkRevoked,
	}
}

// VerifyToken checks a Firebase ID token and returns its uid.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	var (
		result *auth.Token
		err    error
	)
	if f.checkRevoked {
		result, err = f.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	} else {
		result, err = f.client.VerifyIDToken(ctx, token)
	}
	if err != nil {
		return "", tokenError(err)
	}

	return result.UID, nil
}

// tokenError treats only timeouts as an outage; any other failure rejects the token.
func tokenError(err error) error {
	switch {
	case auth.IsIDTokenRevoked(err):
		return errors.Unauthenticated("Session has been revoked", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.DependencyUnavailable("Identity provider unavailable", err)
	}
	return errors.Unauthenticated("Invalid or expired token", err)
}
