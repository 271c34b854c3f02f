package errors_test

import (
	"fmt"

	"github.com/espace/zotsync/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	err := &errors.NotFoundError{
		Resource: "record",
		ID:       "ABCD2345",
	}

	if errors.IsNotFound(err) {
		fmt.Println("Record not found")
	}

	// Output: Record not found
}

// Example_conflict shows how a stale version is detected and skipped.
func Example_conflict() {
	var err error = errors.NewConflictError("record", "ABCD2345", "12")

	if errors.IsConflict(err) {
		fmt.Println("skipping:", err)
	}

	// Output: skipping: conflict on record ABCD2345: version 12 is stale
}

// Example_malformedRow shows the per-row import error.
func Example_malformedRow() {
	err := errors.NewMalformedRowError(4, "title", "")
	fmt.Println(err)

	// Output: malformed row 4: missing column title
}
