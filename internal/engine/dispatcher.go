package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/events"
)

// SubscriptionSource is the dispatcher's read-only view of the webhook
// registry.
type SubscriptionSource interface {
	ActiveForEvent(ctx context.Context, sessionID, event string) ([]domain.WebhookSubscription, error)
}

// OutcomeSink records terminal delivery outcomes. The Postgres delivery
// store is the production sink.
type OutcomeSink interface {
	RecordOutcome(ctx context.Context, o domain.DeliveryOutcome) error
}

// Broadcaster pushes live delivery updates to monitoring clients.
type Broadcaster interface {
	BroadcastOutcome(o domain.DeliveryOutcome)
}

// Dispatcher fans one internal event out to every matching webhook,
// delivering concurrently: one endpoint never blocks or affects another.
// Dispatch is fire-and-forget from the caller's view; failures surface
// only in the delivery log, never back up the pipeline.
type Dispatcher struct {
	subs      SubscriptionSource
	deliverer *Deliverer
	outcomes  OutcomeSink
	broadcast Broadcaster // optional
	logger    *slog.Logger

	wg  sync.WaitGroup
	now func() time.Time
}

func NewDispatcher(subs SubscriptionSource, deliverer *Deliverer, outcomes OutcomeSink, broadcast Broadcaster, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		subs:      subs,
		deliverer: deliverer,
		outcomes:  outcomes,
		broadcast: broadcast,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish resolves an internal event's canonical names and issues one
// dispatch per name. A single occurrence fans out under multiple
// identifiers when both naming schemes are routable.
func (dp *Dispatcher) Publish(evt domain.Event) {
	for _, canonical := range events.Resolve(evt.Event) {
		dp.Dispatch(context.Background(), evt.SessionID, canonical, evt.Data)
	}
}

// Dispatch loads the active matching subscriptions, builds the payload
// once, and starts one delivery goroutine per webhook. No matching
// webhooks is a no-op.
func (dp *Dispatcher) Dispatch(ctx context.Context, sessionID, event string, data json.RawMessage) {
	webhooks, err := dp.subs.ActiveForEvent(ctx, sessionID, event)
	if err != nil {
		dp.logger.Error("failed to load webhooks for dispatch",
			"session_id", sessionID, "event", event, "error", err)
		return
	}
	if len(webhooks) == 0 {
		return
	}

	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	timestamp := dp.now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(domain.WebhookPayload{
		Event:     event,
		SessionID: sessionID,
		Timestamp: timestamp,
		Data:      data,
	})
	if err != nil {
		dp.logger.Error("failed to marshal webhook payload",
			"session_id", sessionID, "event", event, "error", err)
		return
	}

	dp.logger.Info("dispatching event",
		"session_id", sessionID,
		"event", event,
		"webhooks", len(webhooks),
	)

	for _, w := range webhooks {
		job := DeliveryJob{
			Webhook:   w,
			Event:     event,
			SessionID: sessionID,
			Timestamp: timestamp,
			Body:      body,
		}
		dp.wg.Add(1)
		go func() {
			defer dp.wg.Done()
			outcome := dp.deliverer.Deliver(context.Background(), job)
			dp.record(outcome)
		}()
	}
}

// Drain blocks until every in-flight delivery has terminated. Called on
// shutdown so outcomes are not lost.
func (dp *Dispatcher) Drain() {
	dp.wg.Wait()
}

func (dp *Dispatcher) record(o domain.DeliveryOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dp.outcomes.RecordOutcome(ctx, o); err != nil {
		dp.logger.Error("failed to record delivery outcome",
			"webhook_id", o.WebhookID,
			"session_id", o.SessionID,
			"event", o.Event,
			"error", err,
		)
	}
	if dp.broadcast != nil {
		dp.broadcast.BroadcastOutcome(o)
	}
}
