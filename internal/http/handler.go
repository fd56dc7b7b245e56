package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qhosting/provisioning-service/internal/models"
	"github.com/qhosting/provisioning-service/internal/queue"
	"github.com/qhosting/provisioning-service/internal/repository"
	"github.com/qhosting/provisioning-service/internal/service"
)

type Handler struct {
	orders  *service.OrderService
	catalog *service.CatalogService
}

func NewHandler(orders *service.OrderService, catalog *service.CatalogService) *Handler {
	return &Handler{orders: orders, catalog: catalog}
}

// ==================== Provisioning ====================

// Provision accepts an order and queues the provisioning job. Resolution
// and config errors come back synchronously; the outcome is async.
func (h *Handler) Provision(c *gin.Context) {
	var req models.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.orders.Provision(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNodeUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, queue.ErrQueueUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListServices returns all service records
func (h *Handler) ListServices(c *gin.Context) {
	resp, err := h.orders.ListServices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": resp})
}

// GetService returns one service record; the dashboard polls this to
// observe the asynchronous provisioning outcome
func (h *Handler) GetService(c *gin.Context) {
	resp, err := h.orders.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetServiceLogs returns the provisioning audit trail for a service
func (h *Handler) GetServiceLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	resp, err := h.orders.GetServiceLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": resp})
}

// SuspendService is the administrative active -> suspended action
func (h *Handler) SuspendService(c *gin.Context) {
	if err := h.orders.SuspendService(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

// ServiceSSO returns a panel login URL for an active service
func (h *Handler) ServiceSSO(c *gin.Context) {
	url, err := h.orders.PanelLoginURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.SSOResponse{RedirectURL: url})
}

// ==================== Catalog ====================

// ListPlans returns the purchasable catalog
func (h *Handler) ListPlans(c *gin.Context) {
	resp, err := h.catalog.ListPlans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": resp})
}

// SavePlan creates or replaces a catalog plan (admin)
func (h *Handler) SavePlan(c *gin.Context) {
	var req models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.catalog.SavePlan(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrNodeUnavailable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": resp})
}

// DeletePlan removes a catalog plan (admin)
func (h *Handler) DeletePlan(c *gin.Context) {
	if err := h.catalog.DeletePlan(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ListNodes returns the node inventory with utilization figures
func (h *Handler) ListNodes(c *gin.Context) {
	resp, err := h.catalog.ListNodes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": resp})
}
