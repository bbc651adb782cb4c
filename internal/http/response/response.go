package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error      APIError `json:"error"`
	RetryAfter int      `json:"retryAfter,omitempty"`
	TraceID    string   `json:"trace_id,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error, retryAfter int) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	traceID := c.GetString("trace_id")
	requestID := c.GetString("request_id")
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
		RetryAfter: retryAfter,
		TraceID:    traceID,
		RequestID:  requestID,
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondAPIErr maps a domain error to its wire shape. If err is not an
// *apierr.Error it is surfaced as an opaque internal error; callers should
// not leak raw infrastructure error text to clients.
func RespondAPIErr(c *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		RespondError(c, http.StatusInternalServerError, string(apierr.KindInternal), errors.New("internal error"), 0)
		return
	}
	retryAfter := 0
	if apiErr.Kind == apierr.KindRateLimited && apiErr.RetryAfter > 0 {
		retryAfter = apiErr.RetryAfter
		c.Header("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	RespondError(c, apiErr.HTTPStatus(), string(apiErr.Kind), apiErr, retryAfter)
}
