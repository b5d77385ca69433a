package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

var kindStatus = map[error]int{
	utils.ErrNotFound:          http.StatusNotFound,
	utils.ErrValidation:        http.StatusBadRequest,
	utils.ErrConflict:          http.StatusConflict,
	utils.ErrInvalidState:      http.StatusConflict,
	utils.ErrAmountMismatch:    http.StatusUnprocessableEntity,
	utils.ErrInsufficientStock: http.StatusUnprocessableEntity,
	utils.ErrInfrastructure:    http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status. Unclassified errors are 500.
func StatusFor(err error) int {
	if status, ok := kindStatus[utils.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, funcName string, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger := config.GetLogger()
		correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"module":         "handlers",
			"funcName":       funcName,
			"correlation_id": correlationId,
			"path":           c.FullPath(),
		}).Error(err.Error())
		message = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// bindJSON decodes the request body; decode failures are validation errors.
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, utils.ErrValidation) {
			return err
		}
		return utils.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

func identity(c *gin.Context) utils.Identity {
	id, _ := utils.GetIdentityFromContext(c.Request.Context())
	return id
}
