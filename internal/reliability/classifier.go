package reliability

import "strings"

// IsRetryableHTTPStatus classifies retryable HTTP status codes. Callers use it
// to label failures; nothing in the service retries on its own.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// RecognizerErrorClass groups browser speech-recognition error codes.
type RecognizerErrorClass string

const (
	RecognizerTransient        RecognizerErrorClass = "transient"
	RecognizerPermissionDenied RecognizerErrorClass = "permission_denied"
)

// ClassifyRecognizerError maps a SpeechRecognitionErrorEvent.error code.
// Permission denial is terminal for the capture session; every other code,
// including unknown ones, is transient.
func ClassifyRecognizerError(code string) RecognizerErrorClass {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "not-allowed", "service-not-allowed":
		return RecognizerPermissionDenied
	default:
		return RecognizerTransient
	}
}
