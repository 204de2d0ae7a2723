package dispatch

import (
	"dripline/internal/config_handler"
	"dripline/internal/logger"
	"dripline/pkg/models"
)

type Handler = config_handler.Handler

func NewHandler(service *Service, log logger.Logger) *Handler {
	return config_handler.NewHandlerWithReloader(
		models.ServiceTypeDispatch,
		service,
		log,
		models.EventTypeCampaignUpdated,
		models.EventTypeCampaignRuleUpdated,
	)
}
