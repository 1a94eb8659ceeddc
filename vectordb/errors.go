package vectordb

import "fmt"

// UnsupportedOperationError indicates an operation kind a dialect has no
// rendering for.
type UnsupportedOperationError struct {
	Dialect string
	Kind    OpKind
	Hint    string
}

func (e UnsupportedOperationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s is not supported: %s", e.Dialect, e.Kind, e.Hint)
	}
	return fmt.Sprintf("%s: %s is not supported", e.Dialect, e.Kind)
}
