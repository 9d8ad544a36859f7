package rewrite

import "fmt"

// RecordError reports a data line that could not be rewritten, with its
// 1-based input line number. It aborts the run; the rewriter never pads or
// skips malformed records, since that would silently change the file's
// meaning.
type RecordError struct {
	Line    int
	Message string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %s", e.Line, e.Message)
}
