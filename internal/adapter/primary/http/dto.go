package http

// SendMessageResponse is returned once a message has been accepted.
type SendMessageResponse struct {
	MessageID   string `json:"message_id"`
	Destination string `json:"to"`
	Mode        string `json:"mode"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
