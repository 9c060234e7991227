// Package router is the routing surface the management API is written
// against. Patterns use the "{name}" parameter form.
package router

import "net/http"

// Router dispatches requests to handlers registered by method and pattern.
type Router interface {
	http.Handler
	// Handle registers h. Middleware added with Use before the call wraps it.
	Handle(method, pattern string, h HandlerFunc)
	Use(mw ...Middleware)
}

// HandlerFunc serves one request. A returned error that was not answered
// yet becomes a 500.
type HandlerFunc func(Context) error

// Middleware wraps a handler.
type Middleware func(HandlerFunc) HandlerFunc

// Context is one request in flight.
type Context interface {
	Request() *http.Request
	// SetRequest swaps the request, usually for one with a derived context.
	SetRequest(r *http.Request)
	Response() ResponseWriter

	Param(name string) string
	Query(name string) string
	// Route is the matched pattern, such as "/locks/{object}/{id}".
	Route() string

	JSON(code int, v any) error
}

// ResponseWriter remembers the status sent to the client.
type ResponseWriter interface {
	http.ResponseWriter
	Status() int
	Written() bool
}

// ErrorResponse is the body of every non-2xx answer:
//
//	{"error":{"code":"...","message":"...","details":{...}},"request_id":"..."}
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorBody is the "error" member of ErrorResponse.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
