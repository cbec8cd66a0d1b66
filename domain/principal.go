package domain

// Principal is the authenticated identity of a connection attempt.
// The zero value is anonymous.
type Principal struct {
	Username string
}

// Authenticated reports whether the principal carries a resolved identity.
func (p Principal) Authenticated() bool {
	return p.Username != ""
}
