package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/service"
	"github.com/rs/zerolog"
)

// ItemHandler serves duplicate, bulk and import endpoints keyed by research item
type ItemHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(services *service.Services, log zerolog.Logger) *ItemHandler {
	return &ItemHandler{
		services: services,
		log:      log.With().Str("handler", "research_item").Logger(),
	}
}

// Calculate handles POST /v1/research-items/:id/calculate
func (h *ItemHandler) Calculate(c *gin.Context) {
	itemID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req models.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	mode, err := service.ParseCalculateMode(req.CalculateOn)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	pairs, err := h.services.Duplicates.Calculate(c.Request.Context(), service.CalculateInput{
		ResearchItemID:     itemID,
		ResearchEntityID:   req.ResearchEntityID,
		ResearchItemTypeID: req.ResearchItemTypeID,
		Mode:               mode,
		CleanOld:           req.CleanOldDuplicates,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, pairs)
}

// ListDuplicates handles GET /v1/research-items/:id/duplicates
func (h *ItemHandler) ListDuplicates(c *gin.Context) {
	itemID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	list, err := h.services.Duplicates.ListByItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if list == nil {
		list = []*models.Duplicate{}
	}
	respond(c, http.StatusOK, list)
}

// SetDuplicate handles PATCH /v1/duplicate?id1=&id2=&researchEntityId=&isDuplicate=
func (h *ItemHandler) SetDuplicate(c *gin.Context) {
	var d models.Duplicate
	var ok bool
	if d.ResearchItemID, ok = int64Query(c, "id1"); !ok {
		return
	}
	if d.DuplicateID, ok = int64Query(c, "id2"); !ok {
		return
	}
	if d.ResearchEntityID, ok = int64Query(c, "researchEntityId"); !ok {
		return
	}
	if d.ResearchItemID == 0 || d.DuplicateID == 0 || d.ResearchEntityID == 0 {
		badRequest(c, "id1, id2 and researchEntityId are required")
		return
	}
	isDuplicate, err := strconv.ParseBool(c.DefaultQuery("isDuplicate", "true"))
	if err != nil {
		badRequest(c, "invalid isDuplicate")
		return
	}
	d.IsDuplicate = isDuplicate

	out, err := h.services.Duplicates.SetDuplicate(c.Request.Context(), &d)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, out)
}

// BulkVerify handles POST /v1/research-items/bulk-verify
func (h *ItemHandler) BulkVerify(c *gin.Context) {
	var req models.BulkVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.services.Bulk.Verify(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, resp)
}

// BulkUnverify handles POST /v1/research-items/unverify
func (h *ItemHandler) BulkUnverify(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	results, err := h.services.Bulk.Unverify(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, results)
}

// BulkSuggest handles POST /v1/research-items/suggestion
func (h *ItemHandler) BulkSuggest(c *gin.Context) {
	var req models.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	results, err := h.services.Bulk.Suggest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, results)
}

// BulkDiscard handles POST /v1/research-items/discard
func (h *ItemHandler) BulkDiscard(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.services.Bulk.Discard(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// BulkDeleteDrafts handles POST /v1/research-items/delete-drafts
func (h *ItemHandler) BulkDeleteDrafts(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.services.Bulk.DeleteDrafts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// UpsertExternal handles PUT /v1/research-items/external
func (h *ItemHandler) UpsertExternal(c *gin.Context) {
	var req models.ExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	item, err := h.services.Drafts.UpsertExternal(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, item)
}
