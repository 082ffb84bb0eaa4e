package responses

// SuccessEnvelope wraps every 2xx JSON body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope wraps every error body: {"error": {"code", "message", "details"}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError details name the ids involved, such as inventoryId, orderId or
// failedIndex. 500 and 503 bodies never carry them.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
