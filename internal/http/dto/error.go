package dto

// ErrorResponse is the body of every non-stream error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
