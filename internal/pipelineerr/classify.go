package pipelineerr

import "net/http"

// ClassifyHTTPStatus maps an HTTP response status from an external model
// or embedding service to an error Kind. 429 and 5xx are treated as
// transient; everything else reflects a problem with the request or
// response that a retry cannot fix.
func ClassifyHTTPStatus(status int, service string, err error) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return Wrap(KindTransientExternal, service+": rate limited", err)
	case status >= 500:
		return Wrap(KindTransientExternal, service+": server error", err)
	case status >= 400:
		return Wrap(KindModelOutput, service+": request rejected", err)
	default:
		return Wrap(KindModelOutput, service+": unexpected status", err)
	}
}

// ClassifyNetworkError wraps a transport-level failure (timeout, connection
// reset, DNS failure) as transient, since these are retryable by
// definition.
func ClassifyNetworkError(service string, err error) *Error {
	return Wrap(KindTransientExternal, service+": network error", err)
}
