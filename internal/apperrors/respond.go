package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Code    Kind   `json:"code"`
}

// Respond writes err to the client. Server-side failures are logged with the
// request id; their internal details never reach the response body.
func Respond(c *gin.Context, log *zap.Logger, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = Internal(err, "Server error")
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr.Err),
		)
	}

	msg := appErr.Message
	if appErr.Kind == KindInternal {
		msg = "Server error"
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Msg: msg, Code: appErr.Kind})
}
