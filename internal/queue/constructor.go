package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type KickScheduler struct {
	client Enqueuer
	now    func() time.Time
}

func NewKickScheduler(client Enqueuer) *KickScheduler {
	return &KickScheduler{client: client, now: time.Now}
}

// ScheduleKick asks the worker to run a dispatch tick once the post is due.
// Losing the task only delays the post until the next periodic tick.
func (s *KickScheduler) ScheduleKick(ctx context.Context, postID int64, at time.Time) error {
	return EnqueueKick(ctx, s.client, DispatchKickPayload{PostID: postID, ScheduledAt: at}, s.now())
}

func EnqueueKick(ctx context.Context, client Enqueuer, payload DispatchKickPayload, now time.Time) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	delay := payload.ScheduledAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	task := asynq.NewTask(TaskTypeDispatchKick, taskPayload)

	_, err = client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	slog.Debug("dispatch kick scheduled", "post_id", payload.PostID, "in", delay)
	return nil
}
