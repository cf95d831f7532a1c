// Package delivery records the outcome of send attempts.
//
// A Tracker counts successful and failed sends, bounces and spam reports,
// keeps the completion time of every successful send and a histogram of
// failure descriptions. The caller reports outcomes after each send; the
// tracker never talks to the transport or the rate gate.
//
//	tracker := delivery.NewWithConfig(delivery.Config{Logger: logger})
//	if err := transport.Send(ctx, msg); err != nil {
//		tracker.RecordFailure(to, err.Error())
//	} else {
//		tracker.RecordSuccess(to)
//	}
//
// Snapshots are persisted as JSON with the keys total_sent, successful,
// failed, bounces, spam_reports, delivery_times (epoch seconds) and failures:
//
//	if err := tracker.PersistFile("metrics.json"); err != nil {
//		var perr *delivery.PersistenceError
//		errors.As(err, &perr)
//	}
//
// FileSink, WriterSink and RedisSink are provided; a Flusher persists on a
// cron schedule.
package delivery
