package epic

import "fmt"

// NetworkError represents transport failures and non-2xx responses from the
// EPIC API or its image archive.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "list_images", "grab_image")
	URL        string // Requested URL
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Message    string // Status text or transport error message
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError represents a metadata response that could not be parsed.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid metadata from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
