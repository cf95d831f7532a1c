/*
Package mail builds and sends transactional email.

A Sender ties the pieces together. Every Send waits for admission by a
window.Gate, builds a MIME message with deliverability headers, hands it to
a Transport and records the outcome in a delivery.Tracker:

	sender, err := mail.NewSender(cfg, mail.Options{Logger: logger})
	if err != nil {
		return err
	}

	result := sender.Send(ctx, mail.Email{
		To:      "ada@example.org",
		Subject: "Welcome",
		HTML:    "<p>Hello</p>",
	})

Headers:

Each message carries Message-ID, Date, Return-Path, List-Unsubscribe with
one-click support, Feedback-ID and X-Entity-Ref-ID. Custom headers replace
these, except that Authentication-Results and Received-SPF are never sent.

Templates:

LoadTemplate reads an HTML or Markdown body with optional YAML front matter
and an optional plain-text body. Placeholders use text/template syntax:

	---
	subject: Welcome to {{.domain}}
	---
	<a href="{{.tracking_link}}">Get started</a>

When no text body is given, one is derived from the HTML.
*/
package mail
