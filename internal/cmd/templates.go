package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/sendgate/pkg/mail"
)

const defaultSubject = "Welcome to our community!"

// messageFlags are shared by send and batch.
type messageFlags struct {
	templatesDir string
	template     string
	textTemplate string
	subject      string
	headers      []string
	attachments  []string
	vars         []string
	trackingLink string
	unsubscribe  string
	metricsFile  string
}

func (f *messageFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.templatesDir, "templates-dir", "templates", "directory holding the templates")
	fs.StringVar(&f.template, "template", "template.html", "HTML or Markdown body template")
	fs.StringVar(&f.textTemplate, "text-template", "", "plain-text body template (derived from the HTML when empty)")
	fs.StringVar(&f.subject, "subject", "", "subject line (overrides the template front matter)")
	fs.StringArrayVar(&f.headers, "header", nil, "custom header as Name=value (repeatable)")
	fs.StringArrayVar(&f.attachments, "attach", nil, "file to attach (repeatable)")
	fs.StringArrayVar(&f.vars, "var", nil, "extra template variable as name=value (repeatable)")
	fs.StringVar(&f.trackingLink, "tracking-link", "", "tracking_link variable (default https://<domain>)")
	fs.StringVar(&f.unsubscribe, "unsubscribe-link", "", "unsubscribe_link variable (default mailto:unsubscribe@<domain>)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write delivery metrics JSON to this file when done")
}

// composer renders the same template for many recipients.
type composer struct {
	tmpl    *mail.Template
	vars    map[string]string
	subject string
	headers map[string]string
	attach  []string
}

func (f *messageFlags) composer(cfg mail.Config) (*composer, error) {
	tmpl, err := mail.LoadTemplate(os.DirFS(f.templatesDir), f.template, f.textTemplate)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"domain":           cfg.Domain,
		"tracking_link":    "https://" + cfg.Domain,
		"unsubscribe_link": fmt.Sprintf("mailto:unsubscribe@%s?subject=unsubscribe", cfg.Domain),
	}
	if f.trackingLink != "" {
		vars["tracking_link"] = f.trackingLink
	}
	if f.unsubscribe != "" {
		vars["unsubscribe_link"] = f.unsubscribe
	}
	extra, err := parsePairs("var", f.vars)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		vars[k] = v
	}

	headers, err := parsePairs("header", f.headers)
	if err != nil {
		return nil, err
	}

	return &composer{
		tmpl:    tmpl,
		vars:    vars,
		subject: f.subject,
		headers: headers,
		attach:  f.attachments,
	}, nil
}

// compose renders the message for one recipient. The recipient address is
// available to templates as {{.recipient}}.
func (c *composer) compose(to string) (mail.Email, error) {
	vars := make(map[string]string, len(c.vars)+1)
	for k, v := range c.vars {
		vars[k] = v
	}
	vars["recipient"] = to

	out, err := c.tmpl.Render(vars)
	if err != nil {
		return mail.Email{}, err
	}

	subject := c.subject
	if subject == "" {
		subject = out.Subject
	}
	if subject == "" {
		subject = defaultSubject
	}

	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}

	return mail.Email{
		To:          to,
		Subject:     subject,
		HTML:        out.HTML,
		Text:        out.Text,
		Attachments: c.attach,
		Headers:     headers,
	}, nil
}

func parsePairs(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("--%s %q: expected name=value", flag, kv)
		}
		out[name] = value
	}
	return out, nil
}
