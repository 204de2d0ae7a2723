package campaign

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"dripline/internal/constants"
	"dripline/internal/logger"
	"dripline/pkg/errors"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", h.ListCampaigns)
			campaigns.POST("", h.CreateCampaign)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.PUT("/:id", h.UpdateCampaign)
			campaigns.DELETE("/:id", h.DeleteCampaign)
			campaigns.POST("/:id/validate", h.ValidateCampaign)
			campaigns.GET("/:id/versions", h.GetCampaignVersions)
			campaigns.GET("/:id/audit", h.GetCampaignAuditLogs)

			campaigns.GET("/:id/rules", h.ListRules)
			campaigns.POST("/:id/rules", h.CreateRule)
		}

		rules := v1.Group("/rules")
		{
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

// ListCampaigns godoc
// @Summary      List campaigns
// @Description  Get a list of all drip campaigns
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        enabled  query     bool  false  "Only return enabled campaigns"
// @Success      200  {array}    Campaign
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns [get]
func (h *Handler) ListCampaigns(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"
	campaigns, err := h.Service.ListCampaigns(c.Request.Context(), enabledOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// CreateCampaign godoc
// @Summary      Create a campaign
// @Description  Create a new drip campaign, optionally with initial rules
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        campaign  body       CreateCampaignRequest  true  "Campaign data"
// @Success      201   {object}   Campaign
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /campaigns [post]
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	campaign, err := h.Service.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, campaign)
}

// GetCampaign godoc
// @Summary      Get a campaign by ID
// @Description  Get a specific campaign and its rules
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Campaign ID"
// @Success      200  {object}   Campaign
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns/{id} [get]
func (h *Handler) GetCampaign(c *gin.Context) {
	id := c.Param("id")
	campaign, err := h.Service.GetCampaign(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// UpdateCampaign godoc
// @Summary      Update a campaign
// @Description  Update an existing campaign by ID
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Campaign ID"
// @Param        campaign  body       UpdateCampaignRequest  true  "Updated campaign data"
// @Success      200   {object}   Campaign
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /campaigns/{id} [put]
func (h *Handler) UpdateCampaign(c *gin.Context) {
	id := c.Param("id")
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	campaign, err := h.Service.UpdateCampaign(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

// DeleteCampaign godoc
// @Summary      Delete a campaign
// @Description  Delete a campaign and its rules by ID
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Campaign ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns/{id} [delete]
func (h *Handler) DeleteCampaign(c *gin.Context) {
	id := c.Param("id")
	err := h.Service.DeleteCampaign(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateCampaign godoc
// @Summary      Dry-run a campaign's rules
// @Description  Check every rule of the campaign against the current audience without sending
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Campaign ID"
// @Success      200  {object}   ValidationReport
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns/{id}/validate [post]
func (h *Handler) ValidateCampaign(c *gin.Context) {
	id := c.Param("id")
	report, err := h.Service.ValidateCampaign(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetCampaignVersions godoc
// @Summary      Get campaign version history
// @Description  Get version history for a specific campaign
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Campaign ID"
// @Success      200  {array}   CampaignVersion
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns/{id}/versions [get]
func (h *Handler) GetCampaignVersions(c *gin.Context) {
	id := c.Param("id")
	versions, err := h.Service.GetCampaignVersions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetCampaignAuditLogs godoc
// @Summary      Get audit logs for a campaign
// @Description  Get audit logs for a specific campaign
// @Tags         campaigns
// @Accept       json
// @Produce      json
// @Param        id     path      string  true   "Campaign ID"
// @Param        limit  query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200    {array}   AuditLog
// @Failure      404    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /campaigns/{id}/audit [get]
func (h *Handler) GetCampaignAuditLogs(c *gin.Context) {
	id := c.Param("id")
	limit := parseLimit(c.Query("limit"))

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), &id, "campaign", limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get audit logs with optional filtering by campaign ID and entity type
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        campaign_id  query     string  false  "Filter by campaign ID"
// @Param        entity_type  query     string  false  "Filter by entity type (campaign, rule)"
// @Param        limit        query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200          {array}   AuditLog
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	campaignID := c.Query("campaign_id")
	entityType := c.Query("entity_type")
	limit := parseLimit(c.Query("limit"))

	var campaignIDPtr *string
	if campaignID != "" {
		campaignIDPtr = &campaignID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), campaignIDPtr, entityType, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListRules godoc
// @Summary      List a campaign's rules
// @Description  Get the rules of a campaign in application order
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Campaign ID"
// @Success      200  {array}    CampaignRule
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /campaigns/{id}/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	id := c.Param("id")
	out, err := h.Service.ListRules(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CreateRule godoc
// @Summary      Add a rule to a campaign
// @Description  Create a new rule attached to the campaign
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Campaign ID"
// @Param        rule  body       CreateRuleRequest  true  "Rule data"
// @Success      201   {object}   CampaignRule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /campaigns/{id}/rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	id := c.Param("id")
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.CreateRule(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// UpdateRule godoc
// @Summary      Update a rule
// @Description  Update an existing rule by ID
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Rule ID"
// @Param        rule  body       UpdateRuleRequest  true  "Updated rule data"
// @Success      200   {object}   CampaignRule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	id := c.Param("id")
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	rule, err := h.Service.UpdateRule(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a rule
// @Description  Delete a rule by ID
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	err := h.Service.DeleteRule(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
