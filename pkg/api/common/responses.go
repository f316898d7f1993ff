package common

// ErrorResponse is the error envelope returned by every Klaxon endpoint.
// Service names the upstream that produced the error when the status is a
// passthrough rather than Klaxon's own.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Service string                 `json:"service,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse reports draft validation failures with
// field-specific messages keyed by field name.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
