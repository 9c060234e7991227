// Package gorilla implements router.Router on gorilla/mux.
package gorilla

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nimburion/recordlock/pkg/server/router"
)

// unmatchedRoute labels requests that matched no pattern.
const unmatchedRoute = "unmatched"

// Router registers routes on a mux.Router. Routes are registered at startup
// from one goroutine.
type Router struct {
	mux        *mux.Router
	middleware []router.Middleware
}

var _ router.Router = (*Router)(nil)

// NewRouter returns a router answering unknown paths with 404 and wrong
// methods with 405, both as JSON.
func NewRouter() *Router {
	m := mux.NewRouter()
	m.NotFoundHandler = statusHandler(http.StatusNotFound, "route.not_found", "no route for path")
	m.MethodNotAllowedHandler = statusHandler(http.StatusMethodNotAllowed, "route.method_not_allowed", "method not allowed")
	return &Router{mux: m}
}

func (r *Router) Use(mw ...router.Middleware) {
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) Handle(method, pattern string, h router.HandlerFunc) {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		c := &requestContext{req: req, w: &statusWriter{ResponseWriter: w}}
		if err := h(c); err != nil && !c.w.Written() {
			_ = c.JSON(http.StatusInternalServerError, router.ErrorResponse{
				Error: router.ErrorBody{Code: "internal", Message: "an unexpected error occurred"},
			})
		}
	}).Methods(method)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func statusHandler(status int, code, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c := &requestContext{req: req, w: &statusWriter{ResponseWriter: w}}
		_ = c.JSON(status, router.ErrorResponse{Error: router.ErrorBody{Code: code, Message: message}})
	})
}

type requestContext struct {
	req *http.Request
	w   *statusWriter
}

func (c *requestContext) Request() *http.Request          { return c.req }
func (c *requestContext) SetRequest(r *http.Request)      { c.req = r }
func (c *requestContext) Response() router.ResponseWriter { return c.w }
func (c *requestContext) Param(name string) string        { return mux.Vars(c.req)[name] }
func (c *requestContext) Query(name string) string        { return c.req.URL.Query().Get(name) }

func (c *requestContext) Route() string {
	if route := mux.CurrentRoute(c.req); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return unmatchedRoute
}

func (c *requestContext) JSON(code int, v any) error {
	c.w.Header().Set("Content-Type", "application/json")
	c.w.WriteHeader(code)
	if v == nil || code == http.StatusNoContent {
		return nil
	}
	return json.NewEncoder(c.w).Encode(v)
}

// statusWriter keeps the first status written. Only the handler goroutine
// writes to it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Written() bool { return w.status != 0 }
