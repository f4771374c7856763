package gurt

import "strconv"

// Status is an overlay response status code.
type Status int

// Canonical status codes. The overlay protocol defines a deliberately
// small set; anything else a peer sends is preserved numerically but
// has no registered reason token.
const (
	StatusOK                 Status = 200
	StatusSwitchingProtocols Status = 101
	StatusBadRequest         Status = 400
	StatusTooLarge           Status = 413
	StatusTooManyRequests    Status = 429
	StatusInternalError      Status = 500
)

// Reason returns the fixed ASCII reason token for the status.
// Unknown codes map to the internal error token.
func (s Status) Reason() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSwitchingProtocols:
		return "SWITCHING_PROTOCOLS"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusTooLarge:
		return "TOO_LARGE"
	case StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case StatusInternalError:
		return "INTERNAL_SERVER_ERROR"
	}
	return "INTERNAL_SERVER_ERROR"
}

// Success reports whether the status is in the 2xx range.
func (s Status) Success() bool {
	return s >= 200 && s < 300
}

// String returns "200 OK" style text for logs.
func (s Status) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}
