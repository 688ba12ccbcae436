package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"haul-fleet-backend/internal/db"
	"haul-fleet-backend/internal/model"
)

type fakeSender struct {
	mu       sync.Mutex
	status   int
	payloads []string
	targets  []string
}

func (f *fakeSender) Send(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, string(payload))
	f.targets = append(f.targets, sub.Endpoint)
	status := f.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func newWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func subscribe(t *testing.T, gdb *gorm.DB, endpoint string, trucks ...*model.Truck) model.DispatchSubscription {
	t.Helper()
	sub := model.DispatchSubscription{Endpoint: endpoint, P256DH: "p", Auth: "a", Trucks: trucks}
	require.NoError(t, gdb.Create(&sub).Error)
	return sub
}

func TestNotifyTruckAvailable(t *testing.T) {
	gdb := newWorkerDB(t)
	truck := model.Truck{Code: "TRK-001", Name: "Hauler 001", Status: model.TruckIdle, IsActive: true}
	require.NoError(t, gdb.Create(&truck).Error)
	subscribe(t, gdb, "https://push.example/one", &truck)
	subscribe(t, gdb, "https://push.example/two", &truck)
	subscribe(t, gdb, "https://push.example/other") // not watching this truck

	sender := &fakeSender{}
	pool := NewWorkerPool(2, gdb, &webpush.Options{})
	pool.sender = sender

	pool.notifyTruckAvailable(context.Background(), truck.ID)

	require.Len(t, sender.payloads, 2)
	assert.Contains(t, sender.payloads[0], "TRK-001")
	assert.Contains(t, sender.payloads[0], "available")
	assert.ElementsMatch(t, []string{"https://push.example/one", "https://push.example/two"}, sender.targets)
}

func TestNotifyNoSubscribers(t *testing.T) {
	gdb := newWorkerDB(t)
	truck := model.Truck{Code: "TRK-001", Name: "Hauler 001", Status: model.TruckIdle, IsActive: true}
	require.NoError(t, gdb.Create(&truck).Error)

	sender := &fakeSender{}
	pool := NewWorkerPool(1, gdb, &webpush.Options{})
	pool.sender = sender

	pool.notifyTruckAvailable(context.Background(), truck.ID)
	assert.Empty(t, sender.payloads)
}

func TestExpiredSubscriptionDeleted(t *testing.T) {
	gdb := newWorkerDB(t)
	truck := model.Truck{Code: "TRK-001", Name: "Hauler 001", Status: model.TruckIdle, IsActive: true}
	require.NoError(t, gdb.Create(&truck).Error)
	subscribe(t, gdb, "https://push.example/stale", &truck)

	sender := &fakeSender{status: http.StatusGone}
	pool := NewWorkerPool(1, gdb, &webpush.Options{})
	pool.sender = sender

	pool.notifyTruckAvailable(context.Background(), truck.ID)

	var count int64
	require.NoError(t, gdb.Model(&model.DispatchSubscription{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDispatchNeverBlocks(t *testing.T) {
	gdb := newWorkerDB(t)
	pool := NewWorkerPool(1, gdb, &webpush.Options{})

	// No workers running; the buffered queue absorbs one job and the rest
	// are dropped instead of blocking the caller.
	for i := 0; i < 10; i++ {
		pool.Dispatch("truck-id")
	}
	assert.Len(t, pool.Jobs(), 1)
}
