package transport

import "encoding/json"

// Envelope wraps every API response, success or error.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
	Meta   *Meta       `json:"meta,omitempty"`
}

type ErrorBody struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Meta carries request-scoped details useful when reporting a problem.
type Meta struct {
	RequestID string `json:"requestId,omitempty"`
}

func NewSuccess(data interface{}) Envelope {
	return Envelope{Status: "success", Data: data}
}

// NewError returns an error envelope. details is optional.
func NewError(code, message string, details interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  &ErrorBody{Message: message, Details: details},
	}
}

// WithRequestID tags the envelope with the id echoed in X-Request-ID.
func (e Envelope) WithRequestID(id string) Envelope {
	if id != "" {
		e.Meta = &Meta{RequestID: id}
	}
	return e
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
