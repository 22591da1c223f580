package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gridmarket/backend/internal/application/apptest"
	"github.com/gridmarket/backend/internal/application/billing"
	"github.com/gridmarket/backend/internal/application/registry"
	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/pricing"
	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/interfaces/http/dto"
	"github.com/gridmarket/backend/internal/interfaces/http/middleware"
)

func setupTestRouter(t *testing.T) (*gin.Engine, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	guard := &sync.Mutex{}
	contracts := apptest.NewContractRepo()
	directory := apptest.NewDirectory()
	ips := apptest.NewIPRegistry()
	wallet := apptest.NewWallet()
	feed := &apptest.PriceFeed{Reading: pricing.PriceReading{Average: 500, Min: 100, Max: 1000}}
	clock := apptest.NewClock(time.Unix(1_700_000_000, 0).UTC())
	bus := &apptest.EventBus{}
	schedule := apptest.NewSchedule()
	logger := zap.NewNop()

	policy := pricing.Policy{
		ComputePrice:              600_000,
		StoragePrice:              300_000,
		IPPrice:                   80_000,
		NetworkPrice:              50_000,
		NamePrice:                 5_000,
		DedicationDiscountPercent: 50,
	}
	engine := billing.NewEngine(guard, contracts, directory, ips, wallet, feed, clock, bus, schedule,
		apptest.UnitOfWork{}, policy,
		billing.PlatformAccounts{Escrow: uuid.New(), Foundation: uuid.New(), Staking: uuid.New()},
		billing.Config{CycleSeconds: 3600, GraceCycles: 3, DistributionCycles: 24}, logger)
	service := registry.NewService(guard, contracts, directory, ips, engine, schedule,
		apptest.UnitOfWork{}, bus, clock, logger)

	owner := uuid.New()
	directory.Nodes[1] = &grid.Node{
		ID:         1,
		ProviderID: 10,
		AccountID:  uuid.New(),
		Usage: capacity.NewUsage(resource.Resources{
			CPU: 8, Memory: 16 << 30, FastStorage: 512 << 30, BulkStorage: 1024 << 30,
		}),
	}
	directory.Providers[10] = &grid.Provider{ID: 10, Owner: uuid.New()}

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.RequireAccount())
	NewContractHandler(service).RegisterRoutes(api)
	NewReportHandler(service).RegisterRoutes(api)
	NewNodeHandler(service).RegisterRoutes(api)
	return router, owner
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, account uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AccountHeader, account.String())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeContract(t *testing.T, w *httptest.ResponseRecorder) dto.ContractResponse {
	t.Helper()
	var resp struct {
		Success bool                 `json:"success"`
		Data    dto.ContractResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestContractHandler_CreateReservation(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/reservations", owner, dto.CreateReservationRequest{
		NodeID:    1,
		Resources: dto.ResourcesDTO{CPU: 4, Memory: 8 << 30, FastStorage: 100 << 30},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeContract(t, w)
	assert.Equal(t, "capacity_reservation", created.Kind)
	assert.Equal(t, "created", created.State)
	assert.Equal(t, owner.String(), created.Owner)
	require.NotNil(t, created.CapacityReservation)
	assert.Equal(t, uint64(4), created.CapacityReservation.Total.CPU)
}

func TestContractHandler_CreateReservationMissingAccount(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/reservations", bytes.NewBufferString("{}"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestContractHandler_CreateReservationOverCapacity(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/reservations", owner, dto.CreateReservationRequest{
		NodeID:    1,
		Resources: dto.ResourcesDTO{CPU: 100, Memory: 8 << 30},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_RESOURCES", resp.Error.Code)
}

func TestContractHandler_WorkloadLifecycle(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/reservations", owner, dto.CreateReservationRequest{
		NodeID:    1,
		Resources: dto.ResourcesDTO{CPU: 4, Memory: 8 << 30, FastStorage: 100 << 30},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	reservation := decodeContract(t, w)

	w = doJSON(t, router, http.MethodPost, "/api/v1/contracts/workloads", owner, dto.CreateWorkloadRequest{
		ReservationID:  reservation.ID,
		Resources:      dto.ResourcesDTO{CPU: 2, Memory: 4 << 30},
		DeploymentHash: "abc123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	workload := decodeContract(t, w)
	assert.Equal(t, "workload", workload.Kind)

	w = doJSON(t, router, http.MethodPut,
		fmt.Sprintf("/api/v1/contracts/workloads/%d", workload.ID), owner, dto.UpdateWorkloadRequest{
			Resources:      dto.ResourcesDTO{CPU: 3, Memory: 6 << 30},
			DeploymentHash: "def456",
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeContract(t, w)
	assert.Equal(t, "def456", updated.Workload.DeploymentHash)
	assert.Equal(t, uint64(3), updated.Workload.Resources.CPU)

	w = doJSON(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/contracts/%d", reservation.ID), owner, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/contracts/%d", workload.ID), owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContractHandler_CreateName(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/names", owner, dto.CreateNameRequest{Name: "my-app"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeContract(t, w)
	assert.Equal(t, "my-app", created.Name)

	// duplicate name conflicts
	w = doJSON(t, router, http.MethodPost, "/api/v1/contracts/names", owner, dto.CreateNameRequest{Name: "my-app"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// invalid name rejected
	w = doJSON(t, router, http.MethodPost, "/api/v1/contracts/names", owner, dto.CreateNameRequest{Name: "-bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandler_CancelForeignContract(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/names", owner, dto.CreateNameRequest{Name: "my-app"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeContract(t, w)

	w = doJSON(t, router, http.MethodDelete,
		fmt.Sprintf("/api/v1/contracts/%d", created.ID), uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContractHandler_BillOnDemand(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/contracts/names", owner, dto.CreateNameRequest{Name: "my-app"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeContract(t, w)

	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/contracts/%d/bill", created.ID), owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/contracts/abc/bill", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContractHandler_GetUnknownContract(t *testing.T) {
	router, owner := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/contracts/999", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/contracts/abc", owner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
