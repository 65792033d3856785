package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/encoding/json"

	"github.com/vegasq/parslice/internal/logger"
	"github.com/vegasq/parslice/internal/pipeline"
)

// Error kinds produced by the transport itself.
const (
	KindBadPath          = "bad_path"
	KindMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// StatusOf maps an error kind to its HTTP status code.
func StatusOf(kind string) int {
	switch kind {
	case pipeline.KindNotFound:
		return http.StatusNotFound
	case pipeline.KindSchema:
		return http.StatusUnprocessableEntity
	case pipeline.KindParse, pipeline.KindUnsupportedType, pipeline.KindLiteralType, KindBadPath:
		return http.StatusBadRequest
	case pipeline.KindCanceled:
		return http.StatusServiceUnavailable
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with a JSON error body.
func writeError(c *gin.Context, kind, message string) {
	status := StatusOf(kind)
	body, err := json.Marshal(ErrorResponse{
		Error:     kind,
		Message:   message,
		RequestID: requestIDOf(c),
	})
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("failed to encode error response", "error", err)
		c.AbortWithStatus(status)
		return
	}
	c.Abort()
	c.Data(status, "application/json; charset=utf-8", body)
}

// fail reports a pipeline error.
func fail(c *gin.Context, err error) {
	kind := pipeline.Kind(err)
	message := err.Error()
	if kind == pipeline.KindNotFound {
		// The resolved path names a location on the server's disk.
		message = "file not found"
	}
	writeError(c, kind, message)
}
