package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/service"
	"github.com/sirupsen/logrus"
)

// Worker drains the job queue and dispatches each message to the share
// service.
type Worker struct {
	consumer queue.Consumer
	shares   *service.ShareService
}

func NewWorker(consumer queue.Consumer, shares *service.ShareService) *Worker {
	return &Worker{
		consumer: consumer,
		shares:   shares,
	}
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle dispatches one queued job.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Name {
	case queue.JobRefreshShare:
		var payload struct {
			ShareID string `json:"shareId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("job %s: malformed payload: %w", msg.Name, err)
		}
		logrus.Infof("refreshing share %s", payload.ShareID)
		return w.shares.RefreshShare(ctx, payload.ShareID)

	case queue.JobResyncUsage:
		var payload struct {
			UID string `json:"uid"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("job %s: malformed payload: %w", msg.Name, err)
		}
		return w.shares.ResyncUsage(ctx, payload.UID)
	}

	return fmt.Errorf("unknown job %q", msg.Name)
}
