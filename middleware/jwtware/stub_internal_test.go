package jwtware

import (
	auth "github.com/goliatone/go-auth-tokens"
)

type stubValidator struct{}

func (stubValidator) Validate(string) (*auth.AccessClaims, error) {
	return nil, auth.ErrTokenInvalid
}
