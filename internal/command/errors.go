package command

import (
	"errors"
	"fmt"
)

// Command errors.
var (
	// ErrMissingArgument indicates a required positional argument is absent.
	ErrMissingArgument = errors.New("missing argument")

	// ErrInvalidArgument indicates an argument could not be parsed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTooManyArguments indicates more positional arguments than the command takes.
	ErrTooManyArguments = errors.New("too many arguments")

	// ErrInvalidOverride indicates a path=value override does not fit the parameters.
	ErrInvalidOverride = errors.New("invalid override")

	// ErrDuplicateName indicates a name or alias is already registered.
	ErrDuplicateName = errors.New("command: duplicate name")
)

// ParameterError reports shell arguments that cannot be turned into the
// parameters of a command. It is raised before any I/O happens.
type ParameterError struct {
	// Command is the descriptor name.
	Command string
	// Usage is the descriptor's argument synopsis.
	Usage string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameters for '%s': %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParameterError) Unwrap() error {
	return e.Err
}

func missing(name string) error {
	return fmt.Errorf("%w: <%s>", ErrMissingArgument, name)
}

func invalid(name, value, reason string) error {
	return fmt.Errorf("%w: <%s> %q %s", ErrInvalidArgument, name, value, reason)
}
