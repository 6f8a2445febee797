package authn

import "errors"

var (
	ErrUnauthenticated  = errors.New("request is not authenticated")
	ErrInvalidAuthnMode = errors.New("unknown authentication mode")
	ErrKeyDiscovery     = errors.New("failed to fetch issuer signing keys")
)
