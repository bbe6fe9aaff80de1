// Package middleware decorates a ports.SessionStore with at-rest protections
// (encryption of whole sessions, redaction of free-text notes).
package middleware

import "github.com/aretw0/triage/pkg/ports"

// Middleware wraps a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies mws in order, so the first middleware sees calls first.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
