package constants_test

import (
	"fmt"
	"net/http"

	"github.com/espace/zotsync/pkg/constants"
)

// Example demonstrates using constants for common operations
func Example() {
	fmt.Printf("dir %o, file %o\n", constants.DirPermissions, constants.FilePermissions)
	// Output: dir 755, file 644
}

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Printf("HTTP timeout: %v\n", client.Timeout)
	// Output: HTTP timeout: 30s
}

// Example_defaults shows the defaults used by clean.
func Example_defaults() {
	fmt.Println(constants.DefaultTagPrefix, constants.DefaultThreshold, constants.DefaultPolicy)
	// Output: review: 90 doi,completeness,oldest
}
