package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gridmarket/backend/internal/application/registry"
	"github.com/gridmarket/backend/internal/interfaces/http/dto"
)

// ContractHandler serves the contract lifecycle endpoints.
type ContractHandler struct {
	BaseHandler
	registry *registry.Service
}

// NewContractHandler creates a new contract handler
func NewContractHandler(registry *registry.Service) *ContractHandler {
	return &ContractHandler{registry: registry}
}

// RegisterRoutes registers contract routes
func (h *ContractHandler) RegisterRoutes(rg *gin.RouterGroup) {
	contracts := rg.Group("/contracts")
	{
		contracts.POST("/reservations", h.CreateReservation)
		contracts.POST("/workloads", h.CreateWorkload)
		contracts.PUT("/workloads/:id", h.UpdateWorkload)
		contracts.POST("/names", h.CreateName)
		contracts.GET("/:id", h.Get)
		contracts.DELETE("/:id", h.Cancel)
		contracts.POST("/:id/bill", h.Bill)
	}
}

// CreateReservation handles POST /contracts/reservations
func (h *ContractHandler) CreateReservation(c *gin.Context) {
	caller, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	created, err := h.registry.CreateReservation(c.Request.Context(), caller, registry.CreateReservationInput{
		NodeID:        req.NodeID,
		GroupID:       req.GroupID,
		Resources:     req.Resources.ToDomain(),
		PublicIPCount: req.PublicIPCount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewContractResponse(created))
}

// CreateWorkload handles POST /contracts/workloads
func (h *ContractHandler) CreateWorkload(c *gin.Context) {
	caller, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.CreateWorkloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	created, err := h.registry.CreateWorkload(c.Request.Context(), caller, registry.CreateWorkloadInput{
		ReservationID:  req.ReservationID,
		Resources:      req.Resources.ToDomain(),
		DeploymentHash: req.DeploymentHash,
		DeploymentData: req.DeploymentData,
		PublicIPCount:  req.PublicIPCount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewContractResponse(created))
}

// UpdateWorkload handles PUT /contracts/workloads/:id
func (h *ContractHandler) UpdateWorkload(c *gin.Context) {
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

	var req dto.UpdateWorkloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	updated, err := h.registry.UpdateWorkload(c.Request.Context(), caller, id, registry.UpdateWorkloadInput{
		Resources:      req.Resources.ToDomain(),
		DeploymentHash: req.DeploymentHash,
		DeploymentData: req.DeploymentData,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewContractResponse(updated))
}

// CreateName handles POST /contracts/names
func (h *ContractHandler) CreateName(c *gin.Context) {
	caller, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.CreateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	created, err := h.registry.CreateName(c.Request.Context(), caller, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewContractResponse(created))
}

// Get handles GET /contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	found, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewContractResponse(found))
}

// Cancel handles DELETE /contracts/:id
func (h *ContractHandler) Cancel(c *gin.Context) {
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

	if err := h.registry.Cancel(c.Request.Context(), caller, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Bill handles POST /contracts/:id/bill, settling a contract outside its
// scheduled cycle. Anyone may trigger it; the cost lands on the owner either
// way.
func (h *ContractHandler) Bill(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.registry.Bill(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// parseID parses the :id path parameter.
func parseID(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
