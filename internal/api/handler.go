package api

import (
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"haul-fleet-backend/internal/apperr"
	"haul-fleet-backend/internal/hauling"
	"haul-fleet-backend/internal/notification"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	db          *gorm.DB
	coordinator *hauling.Coordinator
	pool        *notification.WorkerPool
	webpush     *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(db *gorm.DB, coordinator *hauling.Coordinator, pool *notification.WorkerPool, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		db:          db,
		coordinator: coordinator,
		pool:        pool,
		webpush:     webpushOptions,
	}
}

// fail maps an application error kind to an HTTP status and aborts.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindResourceUnavailable, apperr.KindInvalidState, apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}
