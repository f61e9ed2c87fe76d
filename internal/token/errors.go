package token

import "errors"

// ErrUnauthenticated is the single opaque failure returned by Resolve.
// A malformed token, bad signature, unknown jti, expired row, or any claim
// disagreeing with the stored row all collapse to this error so callers
// cannot be used as an oracle for why a token was rejected.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrEntropyExhausted is returned by Issue when repeated entropy collisions
// prevent creating a whitelist row within the retry budget.
var ErrEntropyExhausted = errors.New("could not generate unique token entropy")
