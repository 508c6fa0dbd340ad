package resources

import (
	"errors"
	"fmt"
)

// ErrResourceExtraction indicates a bundled resource could not be materialized
var ErrResourceExtraction = errors.New("resource extraction failed")

// ExtractionError carries the logical path of the resource that failed
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrResourceExtraction, e.Err}
}
