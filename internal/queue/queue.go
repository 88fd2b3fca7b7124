package queue

import (
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeDispatchKick = "dispatch:kick"

type DispatchKickPayload struct {
	PostID      int64     `json:"post_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Kicker starts an out-of-band dispatch tick.
type Kicker interface {
	Kick() bool
}

type Queue struct {
	dispatcher Kicker
}

func NewQueue(dispatcher Kicker) *Queue {
	return &Queue{
		dispatcher: dispatcher,
	}
}

func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeDispatchKick, q.HandleDispatchKickTask)
}
