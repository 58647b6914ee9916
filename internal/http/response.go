// Package http is the HTTP Facade (C11): gin route groups over every
// business package, performing only shape validation and error-kind-to-
// status translation, following the teacher's router.go/jwt_middleware.go/
// chat_handler.go shape. It holds no business rules.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgetmenot/remind/internal/apperr"
)

// statusFor maps an apperr.Kind to the HTTP status §6 assigns it. This
// switch is the single point in the facade that translates a business
// error into a wire status, per spec §4.11.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindRetrievalUnavailable, apperr.KindNarrationUnavailable, apperr.KindTTSUnavailable,
		apperr.KindLipSyncUnavailable, apperr.KindExternalUnavailable:
		return http.StatusBadGateway
	case apperr.KindInvariantViolation, apperr.KindComposeFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ok writes a success envelope: status:"success" plus whatever fields the
// caller merges in.
func ok(c *gin.Context, code int, fields gin.H) {
	body := gin.H{"status": "success"}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(code, body)
}

// fail writes the §6 error envelope and maps err's Kind to a status code.
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(apperr.KindOf(err)), gin.H{
		"status": "error",
		"error":  apperr.KindOf(err),
		"detail": err.Error(),
	})
}

// badRequest writes a plain 400 for requests that fail shape validation
// before ever reaching a business call (so there is no apperr.Kind yet).
func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": "error",
		"error":  apperr.KindInput,
		"detail": detail,
	})
}
