package dto

import (
	"time"

	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/resource"
)

// ResourcesDTO carries a resource vector over the wire. Storage and memory
// are in bytes, CPU in virtual cores.
type ResourcesDTO struct {
	CPU         uint64 `json:"cpu"`
	Memory      uint64 `json:"memory"`
	FastStorage uint64 `json:"fast_storage"`
	BulkStorage uint64 `json:"bulk_storage"`
}

// ToDomain converts the DTO to a domain resource vector.
func (r ResourcesDTO) ToDomain() resource.Resources {
	return resource.Resources{
		CPU:         r.CPU,
		Memory:      r.Memory,
		FastStorage: r.FastStorage,
		BulkStorage: r.BulkStorage,
	}
}

// NewResourcesDTO converts a domain resource vector to its DTO.
func NewResourcesDTO(r resource.Resources) ResourcesDTO {
	return ResourcesDTO{
		CPU:         r.CPU,
		Memory:      r.Memory,
		FastStorage: r.FastStorage,
		BulkStorage: r.BulkStorage,
	}
}

// CreateReservationRequest is the payload for reserving node capacity.
type CreateReservationRequest struct {
	NodeID        uint64       `json:"node_id" binding:"required"`
	GroupID       uint64       `json:"group_id"`
	Resources     ResourcesDTO `json:"resources"`
	PublicIPCount uint32       `json:"public_ip_count"`
}

// CreateWorkloadRequest is the payload for deploying a workload.
type CreateWorkloadRequest struct {
	ReservationID  uint64       `json:"reservation_id" binding:"required"`
	Resources      ResourcesDTO `json:"resources"`
	DeploymentHash string       `json:"deployment_hash" binding:"required"`
	DeploymentData string       `json:"deployment_data"`
	PublicIPCount  uint32       `json:"public_ip_count"`
}

// UpdateWorkloadRequest is the payload for changing a deployment.
type UpdateWorkloadRequest struct {
	Resources      ResourcesDTO `json:"resources"`
	DeploymentHash string       `json:"deployment_hash" binding:"required"`
	DeploymentData string       `json:"deployment_data"`
}

// CreateNameRequest is the payload for registering a name.
type CreateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// SetSurchargeRequest sets a node's monthly extra fee in milli-USD.
type SetSurchargeRequest struct {
	ExtraFee uint64 `json:"extra_fee"`
}

// ReportResourcesRequest is a node's report of what a deployment consumes.
type ReportResourcesRequest struct {
	ContractID uint64       `json:"contract_id" binding:"required"`
	Used       ResourcesDTO `json:"used"`
}

// UsageReportEntry is one cumulative network usage sample.
type UsageReportEntry struct {
	ContractID uint64 `json:"contract_id" binding:"required"`
	Timestamp  int64  `json:"timestamp" binding:"required"`
	Window     uint64 `json:"window"`
	Counter    uint64 `json:"counter"`
}

// ReportUsageRequest is a batch of network usage samples from one node.
type ReportUsageRequest struct {
	Reports []UsageReportEntry `json:"reports" binding:"required,min=1"`
}

// ContractResponse is the wire form of a contract aggregate.
type ContractResponse struct {
	ID          uint64    `json:"id"`
	Owner       string    `json:"owner"`
	Kind        string    `json:"kind"`
	State       string    `json:"state"`
	DeleteCause string    `json:"delete_cause,omitempty"`
	GraceSince  time.Time `json:"grace_since,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	CapacityReservation *ReservationDetails `json:"capacity_reservation,omitempty"`
	Workload            *WorkloadDetails    `json:"workload,omitempty"`
	Name                string              `json:"name,omitempty"`

	AmountUnbilled uint64 `json:"amount_unbilled"`
	AmountEscrowed uint64 `json:"amount_escrowed"`
	MissedCycles   uint32 `json:"missed_cycles"`
}

// ReservationDetails is the reservation payload of a contract response.
type ReservationDetails struct {
	NodeID        uint64       `json:"node_id"`
	GroupID       uint64       `json:"group_id,omitempty"`
	Total         ResourcesDTO `json:"total"`
	Used          ResourcesDTO `json:"used"`
	PublicIPCount uint32       `json:"public_ip_count"`
}

// WorkloadDetails is the workload payload of a contract response.
type WorkloadDetails struct {
	ReservationID  uint64       `json:"reservation_id"`
	NodeID         uint64       `json:"node_id"`
	Resources      ResourcesDTO `json:"resources"`
	DeploymentHash string       `json:"deployment_hash"`
	DeploymentData string       `json:"deployment_data,omitempty"`
	PublicIPCount  uint32       `json:"public_ip_count"`
}

// NewContractResponse converts a domain contract to its wire form.
func NewContractResponse(c *contract.Contract) ContractResponse {
	resp := ContractResponse{
		ID:             c.ID,
		Owner:          c.Owner.String(),
		Kind:           c.Kind().String(),
		State:          c.State.String(),
		GraceSince:     c.GraceSince,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		AmountUnbilled: c.Billing.AmountUnbilled,
		AmountEscrowed: c.Lock.AmountEscrowed,
		MissedCycles:   c.Lock.MissedCycles,
	}
	if c.DeleteCause != contract.DeleteCauseNone {
		resp.DeleteCause = c.DeleteCause.String()
	}

	switch c.Kind() {
	case contract.KindCapacityReservation:
		r := c.CapacityReservation
		resp.CapacityReservation = &ReservationDetails{
			NodeID:        r.NodeID,
			GroupID:       r.GroupID,
			Total:         NewResourcesDTO(r.Total),
			Used:          NewResourcesDTO(r.Used),
			PublicIPCount: r.PublicIPCount,
		}
	case contract.KindWorkload:
		w := c.Workload
		resp.Workload = &WorkloadDetails{
			ReservationID:  w.ReservationID,
			NodeID:         w.NodeID,
			Resources:      NewResourcesDTO(w.Resources),
			DeploymentHash: w.DeploymentHash,
			DeploymentData: w.DeploymentData,
			PublicIPCount:  w.PublicIPCount,
		}
	case contract.KindNameRegistration:
		resp.Name = c.NameRegistration.Name
	}
	return resp
}
