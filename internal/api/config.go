package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditscope/client"
	"github.com/persistorai/auditscope/internal/config"
	"github.com/persistorai/auditscope/internal/middleware"
)

// ConfigHandler serves the persisted .env configuration.
type ConfigHandler struct {
	store ConfigStore
	log   *logrus.Logger
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(store ConfigStore, log *logrus.Logger) *ConfigHandler {
	return &ConfigHandler{store: store, log: log}
}

// Get handles GET /api/config. The API key is redacted.
func (h *ConfigHandler) Get(c *gin.Context) {
	values, err := h.store.Redacted()
	if err != nil {
		middleware.Logger(c, h.log).WithError(err).Error("loading configuration")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to load configuration")

		return
	}

	c.JSON(http.StatusOK, values)
}

// Save handles POST /api/config. The body is a flat JSON object of store
// keys; an empty string removes a key. An API key must remain set.
func (h *ConfigHandler) Save(c *gin.Context) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "body must be a JSON object of strings")

		return
	}

	if err := h.store.Set(updates); err != nil {
		if errors.Is(err, config.ErrUnknownKey) || errors.Is(err, config.ErrMissingAPIKey) ||
			errors.Is(err, client.ErrInvalidDateFormat) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}

		middleware.Logger(c, h.log).WithError(err).Error("saving configuration")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to save configuration")

		return
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	middleware.Logger(c, h.log).WithField("keys", keys).Info("configuration saved")

	c.JSON(http.StatusOK, gin.H{"message": "Configuration saved successfully"})
}
