package handler

import (
	"net/http"

	"lead_routing_backend/internal/leads/conversion"
	"lead_routing_backend/internal/leads/management"
	"lead_routing_backend/internal/leads/transport"
	"lead_routing_backend/platform/httpkit"
	"lead_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc     *management.Service
	signals *conversion.Reporter
	val     *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New builds the handler. signals may be nil when tracking is disabled.
func New(svc *management.Service, signals *conversion.Reporter, val *validator.Validator) *Handler {
	return &Handler{svc: svc, signals: signals, val: val}
}

// RegisterPublicRoutes mounts the intake and funnel signal endpoints.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.POST("/signals", h.ReportSignal)
}

// RegisterRoutes mounts the operator endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.PUT("/:id/appointment", h.ScheduleAppointment)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rc := transport.RequestContext{
		ClientIP:  httpkit.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
	}
	lead, err := h.svc.Create(c.Request.Context(), req, rc)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, lead)
}

// ReportSignal forwards a Contact or ViewContent step to the ad platform.
// It always answers 202; Sent tells the browser whether delivery happened.
func (h *Handler) ReportSignal(c *gin.Context) {
	var req transport.SignalRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sent := h.signals.Report(c.Request.Context(), conversion.Signal{
		Event:           req.Event,
		EventID:         req.EventID,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		DevelopmentName: req.DevelopmentName,
		SourceURL:       req.SourceURL,
		ZipCode:         req.ZipCode,
		FBC:             req.FBC,
		FBP:             req.FBP,
		ClientIP:        httpkit.ClientIP(c),
		UserAgent:       c.Request.UserAgent(),
		Value:           req.Value,
		Currency:        req.Currency,
	})

	httpkit.JSON(c, http.StatusAccepted, transport.SignalResponse{Sent: sent})
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	leads, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, leads)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) ScheduleAppointment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.ScheduleAppointmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lead, err := h.svc.ScheduleAppointment(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
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
