package engine

import "errors"

// Standard errors returned by the engine.
var (
	// ErrInvalidArgument indicates a configuration value outside the accepted set
	// (unknown output format, unknown option key).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUsage indicates an API call with an unsupported shape,
	// such as AddColumn with the wrong number of arguments.
	ErrUsage = errors.New("invalid usage")

	// ErrFinalized is returned when Output is called on an engine that already
	// produced its response.
	ErrFinalized = errors.New("engine already finalized")
)
