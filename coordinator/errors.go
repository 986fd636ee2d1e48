package coordinator

import "errors"

var (
	ErrDuplicateIdentity    = errors.New("participant identity already admitted")
	ErrSessionFull          = errors.New("participant quota reached")
	ErrParticipantTimeout   = errors.New("participant did not respond in time")
	ErrInvalidTransition    = errors.New("invalid session state transition")
	ErrRegistrationDeadline = errors.New("not enough participants registered before the deadline")
	ErrHandshake            = errors.New("invalid registration handshake")
	ErrUnknownDimension     = errors.New("model dimension is unknown")
	ErrAggregatorClosed     = errors.New("aggregator is closed")
	ErrInvalidConfig        = errors.New("invalid run configuration")
	ErrRunInProgress        = errors.New("run already started")
)
