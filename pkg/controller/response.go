package controller

import (
	"net/http"

	"github.com/nimburion/recordlock/pkg/identity"
	"github.com/nimburion/recordlock/pkg/server/router"
)

// DataResponse wraps every 200 body.
type DataResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id,omitempty"`
}

// Success answers 200 with data.
func Success(c router.Context, data any) error {
	requestID, _ := identity.RequestID(c.Request().Context())
	return c.JSON(http.StatusOK, DataResponse{Data: data, RequestID: requestID})
}

// NoContent answers 204.
func NoContent(c router.Context) error {
	return c.JSON(http.StatusNoContent, nil)
}

// Error answers with the status and body chosen by MapError.
func Error(c router.Context, err error) error {
	status, body := MapError(c.Request().Context(), err)
	return c.JSON(status, body)
}
