package actor

import (
	"context"
	"time"

	"github.com/berfenger/switch2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const REFRESH_JOB_KEY = "switch-state-refresh"

// refreshJob asks the master to republish every switch state.
type refreshJob struct {
	root   *actor.RootContext
	target *actor.PID
	logger *zap.Logger
}

func (j *refreshJob) Execute(_ context.Context) error {
	j.logger.Debug("refresh@job execute")
	j.root.Send(j.target, domain.RefreshRequest{})
	return nil
}

func (j *refreshJob) Description() string {
	return "republish switch states"
}

// StartRefreshScheduler schedules a RefreshRequest to target every interval. The
// returned scheduler must be stopped by the caller.
func StartRefreshScheduler(ctx context.Context, root *actor.RootContext, target *actor.PID,
	interval time.Duration, logger *zap.Logger) (quartz.Scheduler, error) {
	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	job := &refreshJob{
		root:   root,
		target: target,
		logger: logger.With(zap.String("job", REFRESH_JOB_KEY)),
	}
	detail := quartz.NewJobDetail(job, quartz.NewJobKey(REFRESH_JOB_KEY))
	if err := sched.ScheduleJob(detail, quartz.NewSimpleTrigger(interval)); err != nil {
		sched.Stop()
		return nil, err
	}
	return sched, nil
}
