package star

import (
	"fmt"
	"strings"
)

// MissingColumnError means a configured axis has no source column in the
// sanitized schema. It is raised before anything is written to the sink.
type MissingColumnError struct {
	Axis       string
	Candidates []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("star: axis %q: no source column found (tried %s)",
		e.Axis, strings.Join(e.Candidates, ", "))
}
