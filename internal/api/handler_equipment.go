package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"haul-fleet-backend/internal/model"
	"haul-fleet-backend/internal/registry"
)

// ListTrucks handles GET /api/trucks.
func (h *Handler) ListTrucks(c *gin.Context) {
	filter := registry.TruckFilter{Status: model.TruckStatus(c.Query("status"))}
	if v := c.Query("isActive"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	trucks, err := registry.ListTrucks(h.db, filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trucks)
}

// GetTruck handles GET /api/trucks/:id.
func (h *Handler) GetTruck(c *gin.Context) {
	truck, err := registry.TruckByID(h.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, truck)
}

type createTruckRequest struct {
	Code            string  `json:"code" binding:"required"`
	Name            string  `json:"name" binding:"required"`
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	YearManufacture int     `json:"yearManufacture"`
	Capacity        float64 `json:"capacity" binding:"gte=0"`
	FuelCapacity    float64 `json:"fuelCapacity" binding:"gte=0"`
	CurrentLocation string  `json:"currentLocation"`
}

// CreateTruck handles POST /api/trucks.
func (h *Handler) CreateTruck(c *gin.Context) {
	var req createTruckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	truck := model.Truck{
		Code:            req.Code,
		Name:            req.Name,
		Brand:           req.Brand,
		Model:           req.Model,
		YearManufacture: req.YearManufacture,
		Capacity:        req.Capacity,
		FuelCapacity:    req.FuelCapacity,
		CurrentLocation: req.CurrentLocation,
		IsActive:        true,
	}
	if err := registry.CreateTruck(h.db, &truck); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, truck)
}

type updateTruckRequest struct {
	Name            *string  `json:"name"`
	Brand           *string  `json:"brand"`
	Model           *string  `json:"model"`
	YearManufacture *int     `json:"yearManufacture"`
	Capacity        *float64 `json:"capacity" binding:"omitempty,gte=0"`
	FuelCapacity    *float64 `json:"fuelCapacity" binding:"omitempty,gte=0"`
	CurrentLocation *string  `json:"currentLocation"`
	IsActive        *bool    `json:"isActive"`
}

// UpdateTruck handles PATCH /api/trucks/:id.
func (h *Handler) UpdateTruck(c *gin.Context) {
	var req updateTruckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	truck, err := registry.UpdateTruck(h.db, c.Param("id"), registry.TruckPatch{
		Name:            req.Name,
		Brand:           req.Brand,
		Model:           req.Model,
		YearManufacture: req.YearManufacture,
		Capacity:        req.Capacity,
		FuelCapacity:    req.FuelCapacity,
		CurrentLocation: req.CurrentLocation,
		IsActive:        req.IsActive,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, truck)
}

type updateStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	Location string `json:"location"`
	Reason   string `json:"reason"`
}

// UpdateTruckStatus handles PATCH /api/trucks/:id/status, the administrative
// override path. The status write and its audit log row land together.
func (h *Handler) UpdateTruckStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return registry.SetTruckStatus(tx, c.Param("id"), model.TruckStatus(req.Status), req.Location, req.Reason)
	})
	if err != nil {
		fail(c, err)
		return
	}

	truck, err := registry.TruckByID(h.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, truck)
}

// DeleteTruck handles DELETE /api/trucks/:id.
func (h *Handler) DeleteTruck(c *gin.Context) {
	if err := registry.DeleteTruck(h.db, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTruckPerformance handles GET /api/trucks/:id/performance.
func (h *Handler) GetTruckPerformance(c *gin.Context) {
	start, ok := parseTimeQuery(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseTimeQuery(c, "endDate")
	if !ok {
		return
	}

	perf, err := h.coordinator.Performance(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

// GetTruckStatusLog handles GET /api/trucks/:id/status-log.
func (h *Handler) GetTruckStatusLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := registry.StatusLog(h.db, c.Param("id"), "", limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListExcavators handles GET /api/excavators.
func (h *Handler) ListExcavators(c *gin.Context) {
	excavators, err := registry.ListExcavators(h.db, model.ExcavatorStatus(c.Query("status")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, excavators)
}

type createExcavatorRequest struct {
	Code            string  `json:"code" binding:"required"`
	Name            string  `json:"name" binding:"required"`
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	Capacity        float64 `json:"capacity" binding:"gte=0"`
	CurrentLocation string  `json:"currentLocation"`
}

// CreateExcavator handles POST /api/excavators.
func (h *Handler) CreateExcavator(c *gin.Context) {
	var req createExcavatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	excavator := model.Excavator{
		Code:            req.Code,
		Name:            req.Name,
		Brand:           req.Brand,
		Model:           req.Model,
		Capacity:        req.Capacity,
		CurrentLocation: req.CurrentLocation,
		IsActive:        true,
	}
	if err := registry.CreateExcavator(h.db, &excavator); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, excavator)
}

// GetExcavator handles GET /api/excavators/:id.
func (h *Handler) GetExcavator(c *gin.Context) {
	excavator, err := registry.ExcavatorByID(h.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, excavator)
}

type updateExcavatorRequest struct {
	Name            *string  `json:"name"`
	Brand           *string  `json:"brand"`
	Model           *string  `json:"model"`
	Capacity        *float64 `json:"capacity" binding:"omitempty,gte=0"`
	CurrentLocation *string  `json:"currentLocation"`
	IsActive        *bool    `json:"isActive"`
}

// UpdateExcavator handles PATCH /api/excavators/:id.
func (h *Handler) UpdateExcavator(c *gin.Context) {
	var req updateExcavatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	excavator, err := registry.UpdateExcavator(h.db, c.Param("id"), registry.ExcavatorPatch{
		Name:            req.Name,
		Brand:           req.Brand,
		Model:           req.Model,
		Capacity:        req.Capacity,
		CurrentLocation: req.CurrentLocation,
		IsActive:        req.IsActive,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, excavator)
}

// UpdateExcavatorStatus handles PATCH /api/excavators/:id/status.
func (h *Handler) UpdateExcavatorStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		return registry.SetExcavatorStatus(tx, c.Param("id"), model.ExcavatorStatus(req.Status), req.Location, req.Reason)
	})
	if err != nil {
		fail(c, err)
		return
	}

	excavator, err := registry.ExcavatorByID(h.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, excavator)
}

// DeleteExcavator handles DELETE /api/excavators/:id.
func (h *Handler) DeleteExcavator(c *gin.Context) {
	if err := registry.DeleteExcavator(h.db, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListOperators handles GET /api/operators.
func (h *Handler) ListOperators(c *gin.Context) {
	operators, err := registry.ListOperators(h.db, model.OperatorStatus(c.Query("status")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, operators)
}

// ListLoadingPoints handles GET /api/loading-points.
func (h *Handler) ListLoadingPoints(c *gin.Context) {
	points, err := registry.ListLoadingPoints(h.db, c.Query("isActive") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// ListDumpingPoints handles GET /api/dumping-points.
func (h *Handler) ListDumpingPoints(c *gin.Context) {
	points, err := registry.ListDumpingPoints(h.db, c.Query("isActive") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}
