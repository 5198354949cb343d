package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Pipeline errors. Only these two abort a run.
	ErrNoCustomers   = fmt.Errorf("no customers to process")
	ErrPublishFailed = fmt.Errorf("publish failed")

	// Storage errors
	ErrConflict = fmt.Errorf("document update conflict")

	// Cache errors
	ErrCacheLocked = fmt.Errorf("cache directory locked by another process")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrNotFound marks a well-formed "no data" response. The batch driver treats
// it as terminal and records it apart from failures.
var ErrNotFound = fmt.Errorf("not found")
