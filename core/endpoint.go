package core

// Endpoint is a framework-agnostic route description. Adapters bind a
// concrete handler to each OperationID.
type Endpoint struct {
	Path      string
	Method    string
	Protected bool // requires a verified bearer token
	Metadata  EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}
