/*
Package sendgate sends transactional email over SMTP under fixed per-second,
per-hour and per-day ceilings and records delivery outcomes.

Send path (pkg/mail):
  - Sender: gate admission, message construction, SMTP transport, outcome recording
  - Templates: text/template bodies with YAML front matter, Markdown support
  - Headers: Message-ID, List-Unsubscribe, Feedback-ID and related headers

Throttling (pkg/ratelimit):
  - window: three-window send gate that stalls instead of rejecting
  - concurrency: cap on simultaneous SMTP connections

Delivery metrics (pkg/delivery):
  - Tracker: counters, delivery times and a failure histogram
  - Sinks: JSON file, io.Writer and Redis persistence, scheduled flushing

Scheduling (pkg/scheduling):
  - workerpool: concurrent batch sending
  - scheduler: cron jobs such as periodic metrics flushes

Example usage:

	import (
		"github.com/vnykmshr/sendgate/pkg/mail"
		"github.com/vnykmshr/sendgate/pkg/ratelimit/window"
	)

	gate, _ := window.NewSafe(10, 1000, 10000)
	sender, err := mail.NewSender(cfg, mail.Options{Gate: gate})
	if err != nil {
		return err
	}

	result := sender.Send(ctx, mail.Email{
		To:      "ada@example.org",
		Subject: "Welcome",
		HTML:    "<p>Hello</p>",
	})
	_ = sender.Tracker().PersistFile("email_metrics.json")

The sendgate command (cmd/sendgate) wraps the same pieces with a JSON
config file, single and batch sends, and an optional metrics endpoint.
*/
package sendgate
