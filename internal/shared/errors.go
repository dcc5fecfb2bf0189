package shared

import "fmt"

var (
	// Resolution errors
	ErrMissingCopyrightID = fmt.Errorf("missing copyright id")

	// Download and library errors
	ErrStreamFailed   = fmt.Errorf("download stream failed")
	ErrCommitFailed   = fmt.Errorf("library commit failed")
	ErrStagingMissing = fmt.Errorf("staging file missing")

	// Task errors
	ErrTaskNotFound    = fmt.Errorf("task not found")
	ErrInvalidStatus   = fmt.Errorf("invalid task status")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
