package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLog пишет строку на каждый запрос с id заказ-наряда и шага из пути
func RequestLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(started))

		if id := c.Param("id"); id != "" {
			event = event.Str("job_card_id", id)
		}
		if stepID := c.Param("stepId"); stepID != "" {
			event = event.Str("step_id", stepID)
		}
		if principal, ok := MustPrincipal(c); ok {
			event = event.Str("actor_id", principal.UserID.String()).Str("actor_role", string(principal.Role))
		}

		event.Msg("request")
	}
}
