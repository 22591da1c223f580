package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gridmarket/backend/internal/application/registry"
	"github.com/gridmarket/backend/internal/interfaces/http/dto"
)

// ReportHandler serves the node report intake endpoints. The authenticated
// account must belong to a registered node.
type ReportHandler struct {
	BaseHandler
	registry *registry.Service
}

// NewReportHandler creates a new report handler
func NewReportHandler(registry *registry.Service) *ReportHandler {
	return &ReportHandler{registry: registry}
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.POST("/resources", h.ReportResources)
		reports.POST("/usage", h.ReportUsage)
	}
}

// ReportResources handles POST /reports/resources
func (h *ReportHandler) ReportResources(c *gin.Context) {
	account, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.ReportResourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err = h.registry.ReportConsumedResources(c.Request.Context(), account, req.ContractID, req.Used.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ReportUsage handles POST /reports/usage
func (h *ReportHandler) ReportUsage(c *gin.Context) {
	account, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req dto.ReportUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	reports := make([]registry.UsageReport, len(req.Reports))
	for i, entry := range req.Reports {
		reports[i] = registry.UsageReport{
			ContractID: entry.ContractID,
			Timestamp:  time.Unix(entry.Timestamp, 0).UTC(),
			Window:     entry.Window,
			Counter:    entry.Counter,
		}
	}

	if err := h.registry.ReportNetworkUsage(c.Request.Context(), account, reports); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
