package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"haul-fleet-backend/internal/hauling"
	"haul-fleet-backend/internal/model"
)

type createHaulingRequest struct {
	TruckID        string      `json:"truckId" binding:"required"`
	ExcavatorID    string      `json:"excavatorId" binding:"required"`
	OperatorID     string      `json:"operatorId" binding:"required"`
	LoadingPointID string      `json:"loadingPointId" binding:"required"`
	DumpingPointID string      `json:"dumpingPointId" binding:"required"`
	RoadSegmentID  *string     `json:"roadSegmentId"`
	DispatcherID   string      `json:"dispatcherId"`
	Shift          model.Shift `json:"shift" binding:"required,oneof=SHIFT_1 SHIFT_2 SHIFT_3"`
	TargetWeight   float64     `json:"targetWeight" binding:"required,gt=0"`
	Distance       float64     `json:"distance" binding:"gte=0"`
}

// CreateHauling handles POST /api/haulings.
func (h *Handler) CreateHauling(c *gin.Context) {
	var req createHaulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.coordinator.Create(c.Request.Context(), hauling.CreateInput{
		TruckID:        req.TruckID,
		ExcavatorID:    req.ExcavatorID,
		OperatorID:     req.OperatorID,
		LoadingPointID: req.LoadingPointID,
		DumpingPointID: req.DumpingPointID,
		RoadSegmentID:  req.RoadSegmentID,
		DispatcherID:   req.DispatcherID,
		Shift:          req.Shift,
		TargetWeight:   req.TargetWeight,
		Distance:       req.Distance,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, activity)
}

// GetHauling handles GET /api/haulings/:id.
func (h *Handler) GetHauling(c *gin.Context) {
	activity, err := h.coordinator.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

// ListHaulings handles GET /api/haulings with query filters.
func (h *Handler) ListHaulings(c *gin.Context) {
	filter := hauling.ListFilter{
		Status:      model.HaulingStatus(c.Query("status")),
		Shift:       model.Shift(c.Query("shift")),
		TruckID:     c.Query("truckId"),
		ExcavatorID: c.Query("excavatorId"),
	}
	if v := c.Query("isDelayed"); v != "" {
		delayed := v == "true"
		filter.IsDelayed = &delayed
	}
	var ok bool
	if filter.StartDate, ok = parseTimeQuery(c, "startDate"); !ok {
		return
	}
	if filter.EndDate, ok = parseTimeQuery(c, "endDate"); !ok {
		return
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			limit := filter.Limit
			if limit <= 0 {
				limit = 20
			}
			filter.Offset = (n - 1) * limit
		}
	}

	activities, total, err := h.coordinator.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities, "total": total})
}

// ListActiveHaulings handles GET /api/haulings/active.
func (h *Handler) ListActiveHaulings(c *gin.Context) {
	activities, err := h.coordinator.Active(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

type updateHaulingRequest struct {
	TruckID        *string              `json:"truckId"`
	ExcavatorID    *string              `json:"excavatorId"`
	OperatorID     *string              `json:"operatorId"`
	LoadingPointID *string              `json:"loadingPointId"`
	DumpingPointID *string              `json:"dumpingPointId"`
	RoadSegmentID  *string              `json:"roadSegmentId"`
	Shift          *model.Shift         `json:"shift"`
	Status         *model.HaulingStatus `json:"status"`
	TargetWeight   *float64             `json:"targetWeight"`
	LoadWeight     *float64             `json:"loadWeight"`
	Distance       *float64             `json:"distance"`
	FuelConsumed   *float64             `json:"fuelConsumed"`
	ReturnTime     *time.Time           `json:"returnTime"`
	Remarks        *string              `json:"remarks"`
}

// UpdateHauling handles PATCH /api/haulings/:id, the supervisor correction
// path.
func (h *Handler) UpdateHauling(c *gin.Context) {
	var req updateHaulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.coordinator.Update(c.Request.Context(), c.Param("id"), hauling.UpdatePatch{
		TruckID:        req.TruckID,
		ExcavatorID:    req.ExcavatorID,
		OperatorID:     req.OperatorID,
		LoadingPointID: req.LoadingPointID,
		DumpingPointID: req.DumpingPointID,
		RoadSegmentID:  req.RoadSegmentID,
		Shift:          req.Shift,
		Status:         req.Status,
		TargetWeight:   req.TargetWeight,
		LoadWeight:     req.LoadWeight,
		Distance:       req.Distance,
		FuelConsumed:   req.FuelConsumed,
		ReturnTime:     req.ReturnTime,
		Remarks:        req.Remarks,
	})
	if err != nil {
		fail(c, err)
		return
	}

	h.notifyIfReleased(activity)
	c.JSON(http.StatusOK, activity)
}

type completeLoadingRequest struct {
	LoadWeight      float64 `json:"loadWeight" binding:"required,gte=0"`
	LoadingDuration *int    `json:"loadingDuration" binding:"omitempty,gte=0"`
}

// CompleteLoading handles POST /api/haulings/:id/complete-loading.
func (h *Handler) CompleteLoading(c *gin.Context) {
	var req completeLoadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.coordinator.CompleteLoading(c.Request.Context(), c.Param("id"), req.LoadWeight, req.LoadingDuration)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

type completeDumpingRequest struct {
	DumpingDuration *int `json:"dumpingDuration" binding:"omitempty,gte=0"`
}

// CompleteDumping handles POST /api/haulings/:id/complete-dumping.
func (h *Handler) CompleteDumping(c *gin.Context) {
	var req completeDumpingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	activity, err := h.coordinator.CompleteDumping(c.Request.Context(), c.Param("id"), req.DumpingDuration)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

type completeHaulingRequest struct {
	ReturnTime *time.Time `json:"returnTime"`
}

// CompleteHauling handles POST /api/haulings/:id/complete.
func (h *Handler) CompleteHauling(c *gin.Context) {
	var req completeHaulingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	activity, err := h.coordinator.Complete(c.Request.Context(), c.Param("id"), req.ReturnTime)
	if err != nil {
		fail(c, err)
		return
	}

	h.notifyIfReleased(activity)
	c.JSON(http.StatusOK, activity)
}

type cancelHaulingRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelHauling handles POST /api/haulings/:id/cancel.
func (h *Handler) CancelHauling(c *gin.Context) {
	var req cancelHaulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.coordinator.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}

	h.notifyIfReleased(activity)
	c.JSON(http.StatusOK, activity)
}

type addDelayRequest struct {
	DelayMinutes      int     `json:"delayMinutes" binding:"required,gt=0"`
	DelayReasonID     *string `json:"delayReasonId"`
	DelayReasonDetail string  `json:"delayReasonDetail" binding:"max=500"`
}

// AddDelay handles POST /api/haulings/:id/delay.
func (h *Handler) AddDelay(c *gin.Context) {
	var req addDelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	activity, err := h.coordinator.AddDelay(c.Request.Context(), c.Param("id"), req.DelayMinutes, req.DelayReasonID, req.DelayReasonDetail)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

// GetStatistics handles GET /api/haulings/statistics.
func (h *Handler) GetStatistics(c *gin.Context) {
	filter := hauling.StatsFilter{Shift: model.Shift(c.Query("shift"))}
	var ok bool
	if filter.StartDate, ok = parseTimeQuery(c, "startDate"); !ok {
		return
	}
	if filter.EndDate, ok = parseTimeQuery(c, "endDate"); !ok {
		return
	}

	stats, err := h.coordinator.Statistics(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// notifyIfReleased queues a dispatcher alert when a transition parked the
// trip's truck back at IDLE.
func (h *Handler) notifyIfReleased(activity *model.HaulingActivity) {
	if h.pool == nil || activity == nil {
		return
	}
	if activity.Status == model.HaulingCompleted || activity.Status == model.HaulingCancelled {
		h.pool.Dispatch(activity.TruckID)
	}
}

// parseTimeQuery reads an optional RFC3339 query parameter. On a malformed
// value it writes a 400 and reports false.
func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + " format, use RFC3339"})
		return nil, false
	}
	return &t, true
}
