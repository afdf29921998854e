package main

import (
	"context"
	"errors"

	"mailerbot/internal/platform"
)

// platformDialer returns the MTProto client implementation this binary
// links. The open core ships without one; deployments replace this file
// (or build with an alternative) to plug their client in. Until then every
// login attempt reports a clear error instead of crashing.
func platformDialer() platform.Dialer {
	return unavailableDialer{}
}

type unavailableDialer struct{}

func (unavailableDialer) Dial(context.Context, string) (platform.Client, error) {
	return nil, errors.New("no platform client linked into this build")
}
