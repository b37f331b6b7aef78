package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"laporan/internal/amqp"
	"laporan/internal/services"
)

// Answerer answers one free-text question.
type Answerer interface {
	Answer(ctx context.Context, text string) services.Outcome
}

// ReplyPublisher sends a reply to the requester's queue.
type ReplyPublisher interface {
	PublishReply(ctx context.Context, replyTo string, reply *amqp.ReportReply) error
}

// NewReportHandler answers each queued request and publishes the outcome.
// Only a failed publish is returned, so a request whose report failed is
// answered with status error rather than redelivered.
func NewReportHandler(svc Answerer, pub ReplyPublisher) amqp.Handler {
	return func(ctx context.Context, req *amqp.ReportRequest) error {
		out := svc.Answer(ctx, req.Text)

		payload, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		reply := amqp.NewReportReply(req.ID, string(out.Status), payload)
		reply.Error = out.Error

		if err := pub.PublishReply(ctx, req.ReplyTo, reply); err != nil {
			return fmt.Errorf("publish reply: %w", err)
		}

		slog.InfoContext(ctx, "Report request answered",
			"component", "worker",
			"message_id", req.ID,
			"status", out.Status)
		return nil
	}
}
