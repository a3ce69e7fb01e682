package handler

import (
	"net/http"

	"lead_routing_backend/internal/advisors/management"
	"lead_routing_backend/internal/advisors/transport"
	"lead_routing_backend/platform/httpkit"
	"lead_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *management.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *management.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id/inventory", h.UpdateInventory)
	rg.PUT("/:id/score-components", h.UpdateScoreComponents)
	rg.POST("/:id/promote", h.Promote)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateAdvisorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	advisor, err := h.svc.Create(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, advisor)
}

func (h *Handler) List(c *gin.Context) {
	advisors, err := h.svc.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, advisors)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	advisor, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, advisor)
}

func (h *Handler) UpdateInventory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateInventoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	advisor, err := h.svc.UpdateInventory(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, advisor)
}

func (h *Handler) UpdateScoreComponents(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateScoreComponentsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	advisor, err := h.svc.UpdateScoreComponents(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, advisor)
}

func (h *Handler) Promote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	advisor, err := h.svc.Promote(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, advisor)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
