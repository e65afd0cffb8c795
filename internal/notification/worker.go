package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the part of the store the worker pool reads and prunes.
type SubscriptionStore interface {
	Furnaces(ctx context.Context) ([]engine.FurnaceSpec, error)
	SubscriptionsForFurnace(ctx context.Context, furnaceID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		store:   store,
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
	log.Printf("Worker %d started", id)
	for {
		select {
		case furnaceID := <-wp.jobs:
			log.Printf("Worker %d processing furnace %s", id, furnaceID)
			wp.sendNotificationsForFurnace(ctx, furnaceID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a furnace for notification. A full queue drops the job
// rather than stall the caller.
func (wp *WorkerPool) Dispatch(furnaceID string) {
	select {
	case wp.jobs <- furnaceID:
	default:
		log.Printf("Notification queue full; dropping job for furnace %s", furnaceID)
	}
}

// BookingsChanged lets the pool act as a scheduler listener.
func (wp *WorkerPool) BookingsChanged(furnaceID string) {
	wp.Dispatch(furnaceID)
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForFurnace(ctx context.Context, furnaceID string) {
	subscriptions, err := wp.store.SubscriptionsForFurnace(ctx, furnaceID)
	if err != nil {
		log.Printf("Error fetching subscriptions for furnace %s: %v", furnaceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for furnace %s", len(subscriptions), furnaceID)

	message := fmt.Sprintf("Drying schedule for %s has changed", wp.furnaceLabel(ctx, furnaceID))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// furnaceLabel falls back to the ID when the furnace cannot be looked up.
func (wp *WorkerPool) furnaceLabel(ctx context.Context, furnaceID string) string {
	furnaces, err := wp.store.Furnaces(ctx)
	if err != nil {
		log.Printf("Error fetching furnace %s: %v", furnaceID, err)
		return furnaceID
	}
	for _, f := range furnaces {
		if f.ID == furnaceID && f.Name != "" {
			return f.Name
		}
	}
	return furnaceID
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
