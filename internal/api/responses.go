package api

import (
	"errors"
	"net/http"

	"caat-reconciliation/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIResponse defines the standard envelope for API responses.
type APIResponse struct {
	Status  string      `json:"status"` // "success" or "error"
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// responder writes envelopes and logs every response.
type responder struct {
	logger *zap.Logger
}

// success sends a successful response with the provided data and message.
func (r responder) success(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{Status: "success", Data: data, Message: message})
	r.logger.Info("API success", zap.String("path", c.Request.URL.Path), zap.Int("status", http.StatusOK))
}

// error sends an error response with the provided code, message, and optional errors.
// Client errors are logged at warn, server errors at error.
func (r responder) error(c *gin.Context, code int, message string, errs ...string) {
	c.JSON(code, APIResponse{Status: "error", Message: message, Errors: errs})
	log := r.logger.Error
	if code < http.StatusInternalServerError {
		log = r.logger.Warn
	}
	log("API error", zap.String("path", c.Request.URL.Path), zap.Int("status", code), zap.Strings("errors", errs))
}

// fail maps a reconciliation error onto a status code. Schema and configuration
// problems are the caller's to fix and are reported with their details.
func (r responder) fail(c *gin.Context, err error) {
	var (
		schemaErr *domain.SchemaError
		cfgErr    *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &schemaErr):
		details := make([]string, 0, len(schemaErr.Missing))
		for _, m := range schemaErr.Missing {
			details = append(details, m.String())
		}
		r.error(c, http.StatusUnprocessableEntity, "required columns could not be resolved", details...)
	case errors.As(err, &cfgErr):
		r.error(c, http.StatusUnprocessableEntity, "invalid reconciliation parameters", cfgErr.Error())
	default:
		r.error(c, http.StatusInternalServerError, "reconciliation failed", err.Error())
	}
}
