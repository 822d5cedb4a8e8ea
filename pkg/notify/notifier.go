package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/models"
)

// Notifier turns order events into customer notifications. Publish hands the
// message to the actor and returns without waiting for delivery.
type Notifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) (*Notifier, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{logger: logger.Named("notification-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &Notifier{system: system, pid: pid, logger: logger.Named("notifier")}, nil
}

func (n *Notifier) Publish(ctx context.Context, event models.OrderEvent) error {
	msg, ok := compose(event)
	if !ok {
		return nil
	}
	n.system.Root.Send(n.pid, msg)
	return nil
}

// Stats asks the actor for its delivery counters.
func (n *Notifier) Stats(timeout time.Duration) (*Stats, error) {
	result, err := n.system.Root.RequestFuture(n.pid, &GetStats{}, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query notification actor: %w", err)
	}
	stats, ok := result.(*Stats)
	if !ok {
		return nil, fmt.Errorf("unexpected notification actor reply %T", result)
	}
	return stats, nil
}

// Stop drains the actor's mailbox and stops it.
func (n *Notifier) Stop() {
	if err := n.system.Root.PoisonFuture(n.pid).Wait(); err != nil {
		n.logger.Warn("Notification actor did not stop cleanly", zap.Error(err))
	}
}

func compose(event models.OrderEvent) (*SendNotification, bool) {
	msg := &SendNotification{
		Recipient: event.Email,
		Channel:   ChannelEmail,
		OrderID:   event.OrderID,
	}

	switch event.Type {
	case models.EventOrderPlaced:
		msg.Subject = "Order received"
		msg.Message = fmt.Sprintf("Hi %s, we received your order %s for $%s.",
			event.CustomerName, event.OrderID, event.Total.StringFixed(2))
	case models.EventOrderStatusChanged:
		if event.From == event.To {
			return nil, false
		}
		msg.Subject = fmt.Sprintf("Order %s", event.To)
		msg.Message = fmt.Sprintf("Hi %s, your order %s is now %s.",
			event.CustomerName, event.OrderID, event.To)
	default:
		return nil, false
	}
	return msg, true
}
