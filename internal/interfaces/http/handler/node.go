package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gridmarket/backend/internal/application/registry"
	"github.com/gridmarket/backend/internal/interfaces/http/dto"
)

// NodeHandler serves the node administration endpoints.
type NodeHandler struct {
	BaseHandler
	registry *registry.Service
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(registry *registry.Service) *NodeHandler {
	return &NodeHandler{registry: registry}
}

// RegisterRoutes registers node routes
func (h *NodeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	nodes := rg.Group("/nodes")
	{
		nodes.PUT("/:id/surcharge", h.SetSurcharge)
		nodes.DELETE("/:id/contracts", h.TearDown)
	}
}

// SetSurcharge handles PUT /nodes/:id/surcharge
func (h *NodeHandler) SetSurcharge(c *gin.Context) {
	caller, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.SetSurchargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.registry.SetDedicatedSurcharge(c.Request.Context(), caller, id, req.ExtraFee); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// TearDown handles DELETE /nodes/:id/contracts, used when a node leaves the
// directory.
func (h *NodeHandler) TearDown(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.registry.NodeDeleted(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
