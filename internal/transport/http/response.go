package httptransport

import (
	"github.com/gin-gonic/gin"

	platformerrors "image-pipeline-server/internal/platform/errors"
)

// APIResponse is the common success envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// ErrorBody is the error shape of the image endpoints.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// RespondSuccess writes an APIResponse.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	resp := APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondError writes an error envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	resp := APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// RespondStatus writes {status, message} with the given code.
func RespondStatus(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorBody{Status: httpStatus, Message: message})
}

// RespondFailure maps err to a status by kind and writes {status, message}.
// The error is attached to the context for the logging middleware.
func RespondFailure(c *gin.Context, err error) {
	_ = c.Error(err)
	RespondStatus(c, platformerrors.HTTPStatus(err), platformerrors.MessageOf(err))
}
