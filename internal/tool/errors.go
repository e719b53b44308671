package tool

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is matched by UnknownToolError via errors.Is.
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError means the dispatch map and the schemas handed to the model
// have drifted apart. It is the only failure Invoke returns as an error.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

func (e *UnknownToolError) Is(target error) bool {
	return target == ErrUnknownTool
}
