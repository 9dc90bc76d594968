package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Error codes returned in ErrorEnvelope.
const (
	CodeInvalidInput = "invalid_input"
	CodeTooLarge     = "too_large"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal"
)

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondInternal hides the cause from the client; callers log it.
func RespondInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: APIError{
			Message: "An internal error occurred.",
			Code:    CodeInternal,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
