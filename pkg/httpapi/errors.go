package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chorusdev/chorus/pkg/apperr"
)

// statusFor maps an error's apperr.Kind to its HTTP status. A plain
// error (no Kind) is treated as an internal failure.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.RequestMalformed:
		return http.StatusBadRequest
	case apperr.UpstreamHTTP, apperr.UpstreamProvider, apperr.UpstreamMalformed:
		return http.StatusBadGateway
	case apperr.Timeout:
		return http.StatusGatewayTimeout
	case apperr.ConfigInvalid, apperr.WorkersAllFailed, apperr.SelectorUnparseable, apperr.NoFinalResponse:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "internal_error"
}

// writeError renders err as an {error:{message,code}} body at the
// status its Kind maps to.
func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody{Error: errorDetail{Message: err.Error(), Code: codeFor(err)}})
}

// badRequest reports a RequestMalformed failure directly, for validation
// performed in the adapter itself (missing fields, unparsable JSON)
// rather than returned from the engine.
func badRequest(c *gin.Context, message string) {
	writeError(c, apperr.New(apperr.RequestMalformed, message))
}
