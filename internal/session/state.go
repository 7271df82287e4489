// Package session tracks who the current actor is and exposes credential operations.
package session

import "gitlab.com/yelinaung/moniclear/internal/auth"

// State is one of Unauthenticated, Authenticating, Guest or Authenticated.
type State interface {
	String() string
	isState()
}

// Unauthenticated means nobody is signed in and no guest session is active.
type Unauthenticated struct{}

// Authenticating means a credential operation or session restore is in progress.
type Authenticating struct{}

// Guest means data lives only in the local store.
type Guest struct{}

// Authenticated carries the provider-issued identity.
type Authenticated struct {
	Identity auth.Identity
}

func (Unauthenticated) isState() {}
func (Authenticating) isState()  {}
func (Guest) isState()           {}
func (Authenticated) isState()   {}

func (Unauthenticated) String() string { return "unauthenticated" }
func (Authenticating) String() string  { return "authenticating" }
func (Guest) String() string           { return "guest" }
func (Authenticated) String() string   { return "authenticated" }

// IdentityOf returns the identity of an Authenticated state.
func IdentityOf(s State) (auth.Identity, bool) {
	a, ok := s.(Authenticated)
	if !ok {
		return auth.Identity{}, false
	}
	return a.Identity, true
}

// IsGuest reports whether s is Guest.
func IsGuest(s State) bool {
	_, ok := s.(Guest)
	return ok
}
