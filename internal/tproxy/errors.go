package tproxy

import "errors"

var (
	// ErrOriginalDst means the kernel had no pre-redirect destination for
	// the connection, usually because it was not redirected at all.
	ErrOriginalDst = errors.New("original destination unavailable")

	// ErrLoop means the original destination is the listener itself.
	ErrLoop = errors.New("destination is the local listener")
)
