package basestation

import "errors"

// Domain errors for the basestation package.
var (
	// ErrProtocolViolation wraps every condition that makes the server drop
	// a connection without replying: undecodable frames, packets sent out of
	// state, and status updates from devices the registry does not know.
	ErrProtocolViolation = errors.New("basestation: protocol violation")

	// ErrReactorStarted is returned when Run is called more than once.
	ErrReactorStarted = errors.New("basestation: reactor already started")
)
