package testutil

import (
	"net/http"

	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

// WithSession puts a wizard session ID in the request context, as the
// session middleware would.
func WithSession(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(requestcontext.WithSessionID(req.Context(), sessionID))
}

// WithRequestID puts a request ID in the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
