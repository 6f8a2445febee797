package authn

import (
	"context"
	"net/http"
)

// NoneAuthenticator accepts every request with an anonymous identity.
type NoneAuthenticator struct{}

func NewNoneAuthenticator() *NoneAuthenticator {
	return &NoneAuthenticator{}
}

func (a *NoneAuthenticator) Verify(_ context.Context, _ *http.Request) (*Identity, error) {
	return &Identity{}, nil
}
