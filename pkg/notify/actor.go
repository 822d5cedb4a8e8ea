// Package notify delivers customer notifications for order events through a
// protoactor notification actor.
package notify

import (
	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type Channel string

const ChannelEmail Channel = "email"

type SendNotification struct {
	Recipient string
	Channel   Channel
	Subject   string
	Message   string
	OrderID   string
}

type NotificationResponse struct {
	Success bool
	Message string
}

type GetStats struct{}

// recentLimit is the default number of notifications kept for Stats.
const recentLimit = 100

type Stats struct {
	Sent int
	// Recent holds the latest notifications, oldest first.
	Recent []SendNotification
}

// NotificationActor handles notifications
type NotificationActor struct {
	logger *zap.Logger
	limit  int
	sent   int
	recent []SendNotification
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *SendNotification:
		a.logger.Info("Sending notification",
			zap.String("recipient", msg.Recipient),
			zap.String("channel", string(msg.Channel)),
			zap.String("order_id", msg.OrderID),
			zap.String("subject", msg.Subject))

		a.sent++
		a.recent = append(a.recent, *msg)
		if over := len(a.recent) - a.limit; over > 0 {
			a.recent = append(a.recent[:0], a.recent[over:]...)
		}

		if ctx.Sender() != nil {
			ctx.Respond(&NotificationResponse{Success: true, Message: "Notification sent successfully"})
		}

	case *GetStats:
		recent := make([]SendNotification, len(a.recent))
		copy(recent, a.recent)
		ctx.Respond(&Stats{Sent: a.sent, Recent: recent})

	case *actor.Started:
		if a.limit <= 0 {
			a.limit = recentLimit
		}
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped", zap.Int("sent", a.sent))
	}
}
