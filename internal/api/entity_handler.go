package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/service"
	"github.com/rs/zerolog"
)

// EntityHandler serves the actions a research entity takes on its own outputs
type EntityHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewEntityHandler creates a new EntityHandler
func NewEntityHandler(services *service.Services, log zerolog.Logger) *EntityHandler {
	return &EntityHandler{
		services: services,
		log:      log.With().Str("handler", "research_entity").Logger(),
	}
}

// CreateDraft handles POST /v1/research-entities/:id/draft
func (h *EntityHandler) CreateDraft(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.services.Drafts.CreateDraft(c.Request.Context(), entityID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, resp)
}

// UpdateDraft handles PUT /v1/research-entities/:id/draft
func (h *EntityHandler) UpdateDraft(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ID <= 0 {
		badRequest(c, "id is required")
		return
	}

	resp, err := h.services.Drafts.UpdateDraft(c.Request.Context(), entityID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// DeleteDraft handles DELETE /v1/research-entities/:id/draft/:itemId
func (h *EntityHandler) DeleteDraft(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	itemID, ok := int64Param(c, "itemId")
	if !ok {
		return
	}

	if err := h.services.Drafts.DeleteDraft(c.Request.Context(), entityID, itemID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": itemID})
}

// Verify handles POST /v1/research-entities/:id/verify
func (h *EntityHandler) Verify(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ResearchItemID <= 0 {
		badRequest(c, "researchItemId is required")
		return
	}

	item, err := h.services.Verification.Verify(c.Request.Context(), entityID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, item)
}

type unverifyRequest struct {
	ResearchItemID int64 `json:"researchItemId" binding:"required"`
}

// Unverify handles POST /v1/research-entities/:id/unverify
func (h *EntityHandler) Unverify(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req unverifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.services.Verification.Unverify(c.Request.Context(), entityID, req.ResearchItemID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"researchItemId": req.ResearchItemID})
}

// Replace handles POST /v1/research-entities/:id/replace
func (h *EntityHandler) Replace(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ResearchItemID <= 0 || req.ToReplaceID <= 0 {
		badRequest(c, "researchItemId and toReplaceId are required")
		return
	}

	item, err := h.services.Verification.Replace(c.Request.Context(), entityID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, item)
}

// ListAliases handles GET /v1/research-entities/:id/aliases
func (h *EntityHandler) ListAliases(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	aliases, err := h.services.Aliases.ListAliases(c.Request.Context(), entityID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if aliases == nil {
		aliases = []*models.Alias{}
	}
	respond(c, http.StatusOK, aliases)
}

// AddAlias handles POST /v1/research-entities/:id/aliases
func (h *EntityHandler) AddAlias(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.AliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	alias, err := h.services.Aliases.AddAlias(c.Request.Context(), entityID, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, alias)
}

// DeleteAlias handles DELETE /v1/research-entities/:id/aliases/:aliasId
func (h *EntityHandler) DeleteAlias(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	aliasID, ok := int64Param(c, "aliasId")
	if !ok {
		return
	}

	if err := h.services.Aliases.DeleteAlias(c.Request.Context(), entityID, aliasID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": aliasID})
}

// ListSuggestions handles GET /v1/research-entities/:id/suggestions?type=
func (h *EntityHandler) ListSuggestions(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	t := models.SuggestionType(c.Query("type"))
	if t != "" && !t.Valid() {
		badRequest(c, "invalid type")
		return
	}

	list, err := h.services.Suggestions.ListByEntity(c.Request.Context(), entityID, t)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Suggested{}
	}
	respond(c, http.StatusOK, list)
}

// RemoveSuggestions handles DELETE /v1/research-entities/:id/suggestions?researchItemId=&type=
func (h *EntityHandler) RemoveSuggestions(c *gin.Context) {
	entityID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	itemID, ok := int64Query(c, "researchItemId")
	if !ok {
		return
	}

	filter := repository.SuggestionFilter{
		ResearchEntityID: entityID,
		ResearchItemID:   itemID,
		Type:             models.SuggestionType(c.Query("type")),
	}
	n, err := h.services.Suggestions.RemoveSuggestions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"removed": n})
}
