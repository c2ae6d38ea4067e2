package shared

import "errors"

// ErrInvalidToken indicates API token verification failure.
var ErrInvalidToken = errors.New("invalid api token")
