package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/utils"
)

const CorrelationIdHeader = "x-correlation-id"

func CorrelationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get(CorrelationIdHeader)
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		c.Header(CorrelationIdHeader, correlationId)

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
