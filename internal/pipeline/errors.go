package pipeline

import (
	"fmt"

	"github.com/sells-group/research-writer/internal/model"
)

// FatalError aborts a run. Message is safe to show to a user; Err holds the
// underlying cause.
type FatalError struct {
	Stage   model.Stage
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pipeline: %s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("pipeline: %s: %s: %v", e.Stage, e.Message, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// fatal builds a FatalError; the driver fills in the stage.
func fatal(msg string, err error) error {
	return &FatalError{Message: msg, Err: err}
}
