package authority

import "fmt"

// Result is the outcome of one submission: Accepted, Rejected or TransportFailure.
type Result interface {
	isResult()
}

// Accepted means the authority answered 2xx with status "ok".
type Accepted struct {
	Protocol string
	Message  string
	Raw      string
}

// Rejected means the authority answered, but with a non-2xx status or status "error".
// Raw is the response payload as JSON text.
type Rejected struct {
	Protocol   *string
	Message    string
	Raw        string
	StatusCode int
}

// TransportFailure means no usable response arrived: dial error, timeout, reset.
type TransportFailure struct {
	Message string
}

func (Accepted) isResult()         {}
func (Rejected) isResult()         {}
func (TransportFailure) isResult() {}

// Error is a non-2xx answer from the authority.
type Error struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("authority: %s: %s", e.Status, truncate(string(e.Body), 512))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
