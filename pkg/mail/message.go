package mail

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Email is a single outgoing message.
type Email struct {
	To      string
	Subject string

	// HTML is the body fragment placed inside the HTML shell.
	HTML string

	// Text is the plain-text alternative. PlainText(HTML) is used when empty.
	Text string

	// Attachments are paths of files attached to the message.
	Attachments []string

	// Headers are custom headers. They replace the generated ones except
	// for Authentication-Results, Received-SPF and the address headers.
	Headers map[string]string
}

// wireNames spells generated headers the way mail clients expect.
var wireNames = map[string]string{
	HeaderFeedbackID:  "Feedback-ID",
	HeaderEntityRefID: "X-Entity-Ref-ID",
}

const htmlShell = `<!DOCTYPE html>
<html lang="nl">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta name="color-scheme" content="light">
    <meta name="supported-color-schemes" content="light">
</head>
<body style="margin: 0; padding: 0; background-color: #f5f5f5;">
%s
</body>
</html>
`

// WrapHTML places content in a light colour-scheme HTML document.
func WrapHTML(content string) string {
	return fmt.Sprintf(htmlShell, content)
}

// Build assembles the MIME message for email and returns it with its
// Message-ID. The message is multipart/alternative (text and HTML), wrapped
// in multipart/mixed when attachments are present.
func Build(cfg Config, email Email, now time.Time) (*gomail.Msg, string, error) {
	if email.To == "" {
		return nil, "", fmt.Errorf("build message: recipient is required")
	}

	msg := gomail.NewMsg()
	if err := setFrom(msg, cfg); err != nil {
		return nil, "", fmt.Errorf("build message: %w", err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, "", fmt.Errorf("build message: invalid recipient: %w", err)
	}
	msg.Subject(email.Subject)

	headers := MergeHeaders(Headers(cfg, email.To, now), email.Headers)
	messageID := headers[HeaderMessageID]

	// Sorted for a stable header order on the wire.
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := headers[name]
		switch name {
		case HeaderMessageID:
			msg.SetMessageIDWithValue(strings.Trim(value, "<>"))
		case HeaderDate:
			t, err := time.Parse(time.RFC1123Z, value)
			if err != nil {
				msg.SetGenHeader(gomail.HeaderDate, value)
				continue
			}
			msg.SetDateWithValue(t)
		case "Subject":
			msg.Subject(value)
		default:
			if wire, ok := wireNames[name]; ok {
				name = wire
			}
			msg.SetGenHeader(gomail.Header(name), value)
		}
	}

	text := email.Text
	if text == "" {
		text = PlainText(email.HTML)
	}
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, WrapHTML(email.HTML))

	for _, path := range email.Attachments {
		if _, err := os.Stat(path); err != nil {
			return nil, "", fmt.Errorf("build message: attachment: %w", err)
		}
		msg.AttachFile(path)
	}

	return msg, messageID, nil
}

func setFrom(msg *gomail.Msg, cfg Config) error {
	if cfg.SenderName != "" {
		return msg.FromFormat(cfg.SenderName, cfg.Sender)
	}
	return msg.From(cfg.Sender)
}
