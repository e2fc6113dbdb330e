package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"github.com/tullo/wordguard/internal/repository"
)

type TemplateHandler struct {
	scope           chatScope
	store           *repository.Store
	defaultTemplate string
}

func NewTemplateHandler(store *repository.Store, defaultTemplate string, scope chatScope) *TemplateHandler {
	return &TemplateHandler{scope: scope, store: store, defaultTemplate: defaultTemplate}
}

// ListTemplates returns the chat's templates, or the default when there are none
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	templates, err := h.store.Templates(ctx, chatID)
	if err != nil {
		h.scope.storeError(c, "Failed to list templates", err)
		return
	}
	if templates == nil {
		templates = []models.Template{}
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"default":   h.defaultTemplate,
	})
}

func (h *TemplateHandler) AddTemplate(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	var req models.AddTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := moderation.ValidateTemplate(req.Text); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.EnsureChat(ctx, chatID, ""); err != nil {
		h.scope.storeError(c, "Failed to add template", err)
		return
	}
	id, err := h.store.AddTemplate(ctx, chatID, req.Text)
	if err != nil {
		h.scope.storeError(c, "Failed to add template", err)
		return
	}

	c.JSON(http.StatusCreated, models.Template{ChatID: chatID, TemplateID: id, Text: req.Text})
}

// DeleteTemplate removes a template; the remaining ones are renumbered densely
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	chatID, ctx, cancel, ok := h.scope.authorize(c)
	if !ok {
		return
	}
	defer cancel()

	id, err := strconv.Atoi(c.Param("template_id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid template ID")
		return
	}

	removed, err := h.store.RemoveTemplate(ctx, chatID, id)
	if err != nil {
		h.scope.storeError(c, "Failed to delete template", err)
		return
	}
	if !removed {
		ErrorResponse(c, http.StatusNotFound, "Template not found")
		return
	}

	c.Status(http.StatusNoContent)
}
