package cli

import "fmt"

// ExitCodeIncomplete is returned when some items of a batch did not complete.
const ExitCodeIncomplete = 2

// BatchExitError signals that an upload finished with failed or aborted
// items. main maps it to ExitCode.
type BatchExitError struct {
	ExitCode int
	Failed   int
	Aborted  int
}

func (e *BatchExitError) Error() string {
	return fmt.Sprintf("upload incomplete: %d failed, %d aborted", e.Failed, e.Aborted)
}
