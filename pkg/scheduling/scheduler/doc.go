// Package scheduler runs tasks on cron schedules.
//
// Schedules are evaluated by github.com/robfig/cron/v3 and due jobs are handed
// to a workerpool.Pool, so a slow job never delays the schedule itself.
//
//	s := scheduler.NewWithConfig(scheduler.Config{Logger: logger})
//	defer func() { <-s.Stop() }()
//
//	flush := workerpool.TaskFunc(func(ctx context.Context) error {
//		return tracker.Persist(ctx, sink)
//	})
//
//	// Every five minutes, on the minute
//	if err := s.ScheduleCron("flush", "*/5 * * * *", flush); err != nil {
//		return err
//	}
//	s.Start()
//
// Expressions may carry an optional leading seconds field
// ("30 */5 * * * *") or use descriptors ("@hourly", "@every 90s").
// ScheduleRepeating is shorthand for "@every" with a time.Duration.
//
// Failures of jobs run on the scheduler's private pool are logged; panics are
// recovered by the cron chain and by the pool.
package scheduler
