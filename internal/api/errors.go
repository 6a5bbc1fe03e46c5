package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"entrepo/internal/errs"
)

// statusFor: вид ошибки движка -> HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrGuardedMutation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrConstraintViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает в привычной форме: {"errors": [...]} для ошибок
// по полям, {"error": "..."} для всего остального.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)

	var e *errs.Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		c.JSON(status, gin.H{"errors": e.Fields})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
