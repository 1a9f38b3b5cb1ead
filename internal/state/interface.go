// internal/state/interface.go
package state

import "context"

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	GetSession() (*Session, error)
	SaveSession(s Session)
	SaveSessionNow(ctx context.Context, s Session) error
	ClearSession() error
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
