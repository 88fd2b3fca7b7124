package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandleDispatchKickTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchKickPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if !q.dispatcher.Kick() {
		// A running tick picks the post up, or the next periodic one does.
		slog.Debug("dispatch kick ignored, tick already running", "post_id", payload.PostID)
		return nil
	}

	slog.Debug("dispatch kicked", "post_id", payload.PostID)
	return nil
}
