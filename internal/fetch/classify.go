package fetch

import "strings"

// ErrorClass categorizes a fetch failure for run diagnostics.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient" // 5xx, timeout, DNS, connection resets
	ClassDurable   ErrorClass = "durable"   // 4xx: gone, forbidden, malformed request
	ClassUnknown   ErrorClass = "unknown"
)

// Retryable reports whether a failure of this class is worth retrying.
func (c ErrorClass) Retryable() bool {
	return c == ClassTransient
}

// Class categorizes the terminal failure.
func (e *FetchError) Class() ErrorClass {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return Classify(e.StatusCode, msg)
}

// Classify determines the error class from an HTTP status code and, when no
// status is available, the error message.
func Classify(statusCode int, errMsg string) ErrorClass {
	if statusCode >= 400 && statusCode < 500 {
		return ClassDurable
	}
	if statusCode >= 500 && statusCode < 600 {
		return ClassTransient
	}
	if isNetworkError(strings.ToLower(errMsg)) {
		return ClassTransient
	}
	return ClassUnknown
}

func isNetworkError(msg string) bool {
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dns") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "tls handshake")
}
