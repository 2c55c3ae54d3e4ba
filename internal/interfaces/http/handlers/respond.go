package handlers

import (
	"errors"
	"net/http"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/valueobject"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CodeMethodNotAllowed is returned when an action is called with the wrong
// HTTP method.
const CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

const principalKey = "principal"

// StatusFor maps an error code to its HTTP status.
func StatusFor(code domainErrors.ErrorCode) int {
	switch code {
	case domainErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case domainErrors.CodeForbidden:
		return http.StatusForbidden
	case domainErrors.CodeNotFound:
		return http.StatusNotFound
	case domainErrors.CodeAlreadyExists, domainErrors.CodeCapacity:
		return http.StatusConflict
	case domainErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case domainErrors.CodeServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes the error envelope. Internal errors are logged with their
// cause and reported with a generic message.
func Fail(c *gin.Context, logger *zap.Logger, err error) {
	code := domainErrors.CodeOf(err)
	message := "internal server error"
	if code == domainErrors.CodeInternal {
		logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("action", c.Query("action")),
			zap.Error(err),
		)
	} else {
		var appErr *domainErrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = err.Error()
		}
	}
	c.AbortWithStatusJSON(StatusFor(code), gin.H{
		"success": false,
		"error":   message,
		"code":    string(code),
	})
}

func methodNotAllowed(c *gin.Context, want string) {
	c.Header("Allow", want)
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
		"success": false,
		"error":   "method not allowed, use " + want,
		"code":    CodeMethodNotAllowed,
	})
}

// OK writes a success envelope merged with body.
func OK(c *gin.Context, body gin.H) {
	out := gin.H{"success": true}
	for k, v := range body {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c *gin.Context, p valueobject.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller, anonymous when the request carried no
// valid session.
func PrincipalFrom(c *gin.Context) valueobject.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(valueobject.Principal); ok {
			return p
		}
	}
	return valueobject.Principal{}
}
