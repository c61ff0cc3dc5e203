package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadlift/services"
	"leadlift/utils"
)

// Settings Handler
type SettingsHandler struct {
	settings APIKeyStore
}

// NewSettingsHandler constructs the settings handler.
func NewSettingsHandler(settings APIKeyStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type SaveAPIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// GetAPIKey godoc
// @Summary Report whether a provider API key is saved
// @Description Returns a masked form of the saved key; the plaintext never leaves the server
// @Tags Settings
// @Produce json
// @Success 200 {object} map[string]interface{} "Saved key state"
// @Router /settings/api-key [get]
func (h *SettingsHandler) GetAPIKey(c *fiber.Ctx) error {
	key, err := h.settings.Load(c.Context(), services.ProviderAPIKeySetting)
	if err != nil {
		if errors.Is(err, services.ErrSettingNotFound) {
			return c.JSON(fiber.Map{"saved": false, "api_key": ""})
		}
		utils.LogRequestError(c, "GetAPIKey: failed to load key", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load API key"})
	}
	return c.JSON(fiber.Map{"saved": true, "api_key": utils.MaskSecret(key)})
}

// SaveAPIKey godoc
// @Summary Save the provider API key for future jobs
// @Tags Settings
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Key saved"
// @Failure 400 {object} map[string]interface{} "Missing key"
// @Router /settings/api-key [put]
func (h *SettingsHandler) SaveAPIKey(c *fiber.Ctx) error {
	var req SaveAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.APIKey == "" {
		return c.Status(400).JSON(fiber.Map{"error": "API key is required"})
	}

	if err := h.settings.Save(c.Context(), services.ProviderAPIKeySetting, req.APIKey); err != nil {
		utils.LogRequestError(c, "SaveAPIKey: failed to save key", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to save API key"})
	}
	return c.JSON(fiber.Map{"message": "API key saved"})
}

// DeleteAPIKey godoc
// @Summary Forget the saved provider API key
// @Tags Settings
// @Produce json
// @Success 200 {object} map[string]interface{} "Key removed"
// @Router /settings/api-key [delete]
func (h *SettingsHandler) DeleteAPIKey(c *fiber.Ctx) error {
	if err := h.settings.Delete(c.Context(), services.ProviderAPIKeySetting); err != nil {
		utils.LogRequestError(c, "DeleteAPIKey: failed to delete key", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to delete API key"})
	}
	return c.JSON(fiber.Map{"message": "API key removed"})
}
