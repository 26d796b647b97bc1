package engine

import "errors"

var (
	// ErrNotFound is returned when no debate exists for an id.
	ErrNotFound = errors.New("debate not found")

	// ErrInvalidPhase is returned when an operation does not apply to the
	// session's current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")

	// ErrStepInvalid is returned when the current configuration step does
	// not validate.
	ErrStepInvalid = errors.New("configuration step is incomplete")

	// ErrInvalidConfig is returned for rejected configuration values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotYourTurn is returned when the user sends while the opponent holds the floor.
	ErrNotYourTurn = errors.New("the opponent holds the floor")

	// ErrBusy is returned while an opponent response is being generated.
	ErrBusy = errors.New("a response is being generated")

	// ErrConfirmationRequired is returned when ending before every turn is done
	// without explicit confirmation.
	ErrConfirmationRequired = errors.New("ending early requires confirmation")

	// ErrEmptyMessage is returned for blank user messages.
	ErrEmptyMessage = errors.New("message is empty")
)
