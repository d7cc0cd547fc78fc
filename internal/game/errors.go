package game

import "errors"

// Controller error taxonomy. The connection endpoint translates these into
// `error` events addressed to the offending client.
var (
	// ErrPlayerJoinRefused signals refusal to admit a new player: session
	// full, wrong password, wrong state or duplicate join.
	ErrPlayerJoinRefused = errors.New("player join refused")

	// ErrGameOver is returned when a controller is constructed for a
	// session that has already started or finished.
	ErrGameOver = errors.New("game is over")

	// ErrEventTypeNotDefined is returned for unknown event types.
	ErrEventTypeNotDefined = errors.New("event type not defined")

	// ErrInvalidMessage is returned when an event payload does not have
	// the expected shape.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidOperation is returned for operations not permitted in the
	// current state or under the current options.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidModeChoice is returned for votes naming an unknown mode.
	ErrInvalidModeChoice = errors.New("invalid mode choice")

	// ErrNotFound is returned by the repository when a record is missing.
	ErrNotFound = errors.New("not found")

	// errDiscardedEvent is an internal signal: the handler chose to drop
	// the event silently (e.g. a tick from a non-host).
	errDiscardedEvent = errors.New("event discarded")
)
