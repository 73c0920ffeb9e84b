package http

import "errors"

// errNoIdentity is returned when a write reaches the handler without a
// verified identity in its context.
var errNoIdentity = errors.New("no verified identity in request context")
