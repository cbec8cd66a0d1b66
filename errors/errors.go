package errors

import "fmt"

var (
	// Session / delivery layer
	ErrUnauthenticated     = fmt.Errorf("unauthenticated connection attempt")
	ErrRegistryUnavailable = fmt.Errorf("registry unavailable")
	ErrConversationName    = fmt.Errorf("empty conversation name")
	ErrSessionClosed       = fmt.Errorf("session closed")

	// Account domain
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Supervision
	ErrWorkerPanic = fmt.Errorf("worker panic")
)
