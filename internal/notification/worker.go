// Package notification pushes truck-availability alerts to subscribed
// dispatcher browsers. Jobs are truck IDs queued when a haul trip completes or
// is cancelled and the truck parks back at IDLE.
package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"haul-fleet-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending availability alerts.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case truckID := <-wp.jobs:
			wp.notifyTruckAvailable(ctx, truckID)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an availability alert for a truck. Non-blocking: alerts are
// best-effort and must never stall a coordinator transition's caller.
func (wp *WorkerPool) Dispatch(truckID string) {
	select {
	case wp.jobs <- truckID:
	default:
		log.Printf("notification queue full, dropping alert for truck %s", truckID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// notifyTruckAvailable fetches subscriptions bound to the truck and pushes an
// availability message to each.
func (wp *WorkerPool) notifyTruckAvailable(ctx context.Context, truckID string) {
	var subscriptions []model.DispatchSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_truck_mapping stm ON stm.dispatch_subscription_endpoint = dispatch_subscriptions.endpoint").
		Where("stm.truck_id = ?", truckID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("error fetching subscriptions for truck %s: %v", truckID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var truck model.Truck
	label := truckID
	if err := wp.db.WithContext(ctx).Select("code").First(&truck, "id = ?", truckID).Error; err != nil {
		log.Printf("error fetching truck %s: %v", truckID, err)
	} else if truck.Code != "" {
		label = truck.Code
	}

	message := fmt.Sprintf("Truck %s is available for dispatch", label)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.DispatchSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
