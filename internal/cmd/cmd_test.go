package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	gomail "github.com/wneessen/go-mail"

	"github.com/vnykmshr/sendgate/internal/testutil"
	"github.com/vnykmshr/sendgate/pkg/delivery"
	"github.com/vnykmshr/sendgate/pkg/mail"
	"github.com/vnykmshr/sendgate/pkg/metrics"
)

type recordingTransport struct {
	mu       sync.Mutex
	to       []string
	subjects []string
	batchIDs []string
	fail     map[string]error
}

func (r *recordingTransport) Send(_ context.Context, msg *gomail.Msg) error {
	to := msg.GetTo()[0].Address

	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.fail[to]; ok {
		return err
	}
	r.to = append(r.to, to)
	r.subjects = append(r.subjects, strings.Join(msg.GetGenHeader(gomail.HeaderSubject), ""))
	r.batchIDs = append(r.batchIDs, strings.Join(msg.GetGenHeader(gomail.Header(HeaderBatchID)), ""))
	return nil
}

// fixture writes a config file and a templates directory and installs a
// recording transport.
type fixture struct {
	dir       string
	config    string
	templates string
	transport *recordingTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		dir:       dir,
		config:    filepath.Join(dir, "smtp_config.json"),
		templates: filepath.Join(dir, "templates"),
		transport: &recordingTransport{},
	}

	writeFile(t, f.config, `{
		"host": "smtp.example.com",
		"port": 587,
		"sender": "news@example.com",
		"sender_name": "Example News",
		"rate": {"per_second": 50},
		"log": {"level": "error", "format": "json"}
	}`)
	testutil.AssertNoError(t, os.MkdirAll(f.templates, 0o755))
	writeFile(t, filepath.Join(f.templates, "template.html"), `---
subject: Welcome to {{.domain}}
---
<p>Hello {{.recipient}}, visit <a href="{{.tracking_link}}">us</a>.</p>
<p><a href="{{.unsubscribe_link}}">Unsubscribe</a></p>
`)
	writeFile(t, filepath.Join(f.templates, "template.txt"), "Hello {{.recipient}}\n")

	prev := newTransport
	newTransport = func(mail.Config, *metrics.Registry) (mail.Transport, error) { return f.transport, nil }
	t.Cleanup(func() { newTransport = prev })

	return f
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	testutil.AssertNoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func (f *fixture) run(args ...string) (string, error) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", f.config, "--templates-dir", f.templates))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSendCommand(t *testing.T) {
	f := newFixture(t)
	metricsFile := filepath.Join(f.dir, "email_metrics.json")

	out, err := f.run("send",
		"--to", "ada@example.org",
		"--text-template", "template.txt",
		"--header", "X-Campaign-Type=welcome",
		"--metrics-file", metricsFile)
	testutil.AssertNoError(t, err)

	var result mail.Result
	testutil.AssertNoError(t, json.Unmarshal([]byte(out), &result))
	testutil.AssertEqual(t, result.Status, mail.StatusSuccess)
	testutil.AssertEqual(t, result.Recipient, "ada@example.org")
	testutil.AssertEqual(t, result.SMTPServer, "smtp.example.com")

	testutil.AssertEqual(t, len(f.transport.to), 1)
	testutil.AssertEqual(t, f.transport.subjects[0], "Welcome to example.com")

	snap, err := delivery.ReadFile(metricsFile)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, snap.TotalSent, 1)
	testutil.AssertEqual(t, snap.Successful, 1)
}

func TestSendCommand_SubjectFlag(t *testing.T) {
	f := newFixture(t)

	_, err := f.run("send", "--to", "ada@example.org", "--subject", "Hi there")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, f.transport.subjects[0], "Hi there")
}

func TestSendCommand_Failure(t *testing.T) {
	f := newFixture(t)
	f.transport.fail = map[string]error{"bob@example.org": errors.New("550 mailbox unavailable")}

	out, err := f.run("send", "--to", "bob@example.org")
	testutil.AssertError(t, err)

	var result mail.Result
	testutil.AssertNoError(t, json.Unmarshal([]byte(out), &result))
	testutil.AssertEqual(t, result.Status, mail.StatusError)
	testutil.AssertEqual(t, result.Error, "550 mailbox unavailable")
}

func TestSendCommand_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing to", []string{"send"}},
		{"bad header", []string{"send", "--to", "ada@example.org", "--header", "NoValue"}},
		{"missing template", []string{"send", "--to", "ada@example.org", "--template", "absent.html"}},
		{"missing text template", []string{"send", "--to", "ada@example.org", "--text-template", "absent.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(tt.args...)
			testutil.AssertError(t, err)
		})
	}
	testutil.AssertEqual(t, len(f.transport.to), 0)
}

func TestBatchCommand(t *testing.T) {
	f := newFixture(t)
	recipients := filepath.Join(f.dir, "recipients.txt")
	writeFile(t, recipients, `# launch list
ada@example.org

Bob <bob@example.org>
carol@example.org
`)
	metricsFile := filepath.Join(f.dir, "batch_metrics.json")

	out, err := f.run("batch", "--recipients", recipients, "--workers", "2", "--metrics-file", metricsFile)
	testutil.AssertNoError(t, err)

	var summary batchSummary
	testutil.AssertNoError(t, json.Unmarshal([]byte(out), &summary))
	testutil.AssertEqual(t, summary.Total, 3)
	testutil.AssertEqual(t, summary.Successful, 3)
	testutil.AssertEqual(t, summary.Results[1].Recipient, "bob@example.org")
	if summary.BatchID == "" {
		t.Fatal("batch id is empty")
	}

	testutil.AssertEqual(t, len(f.transport.batchIDs), 3)
	for _, id := range f.transport.batchIDs {
		testutil.AssertEqual(t, id, summary.BatchID)
	}

	snap, err := delivery.ReadFile(metricsFile)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, snap.Successful, 3)
}

func TestBatchCommand_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.transport.fail = map[string]error{"bob@example.org": errors.New("550 mailbox unavailable")}
	recipients := filepath.Join(f.dir, "recipients.txt")
	writeFile(t, recipients, "ada@example.org\nbob@example.org\n")

	out, err := f.run("batch", "--recipients", recipients)
	testutil.AssertError(t, err)

	var summary batchSummary
	testutil.AssertNoError(t, json.Unmarshal([]byte(out), &summary))
	testutil.AssertEqual(t, summary.Successful, 1)
	testutil.AssertEqual(t, summary.Failed, 1)
	testutil.AssertEqual(t, summary.Results[1].Error, "550 mailbox unavailable")
	testutil.AssertEqual(t, len(f.transport.to), 1)
	testutil.AssertEqual(t, f.transport.to[0], "ada@example.org")
}

func TestBatchCommand_FlushCronWithFile(t *testing.T) {
	f := newFixture(t)
	recipients := filepath.Join(f.dir, "recipients.txt")
	writeFile(t, recipients, "ada@example.org\n")
	metricsFile := filepath.Join(f.dir, "batch_metrics.json")

	_, err := f.run("batch", "--recipients", recipients,
		"--flush-cron", "@every 1h", "--metrics-file", metricsFile)
	testutil.AssertNoError(t, err)

	snap, err := delivery.ReadFile(metricsFile)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, snap.TotalSent, 1)
}

func TestBatchCommand_InvalidInput(t *testing.T) {
	f := newFixture(t)
	recipients := filepath.Join(f.dir, "recipients.txt")
	writeFile(t, recipients, "ada@example.org\n")
	empty := filepath.Join(f.dir, "empty.txt")
	writeFile(t, empty, "# nobody yet\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing recipients", []string{"batch"}},
		{"no workers", []string{"batch", "--recipients", recipients, "--workers", "0"}},
		{"flush without sink", []string{"batch", "--recipients", recipients, "--flush-cron", "@every 1m"}},
		{"empty file", []string{"batch", "--recipients", empty}},
		{"bad cron", []string{"batch", "--recipients", recipients, "--flush-cron", "every minute",
			"--metrics-file", filepath.Join(f.dir, "m.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(tt.args...)
			testutil.AssertError(t, err)
		})
	}
	testutil.AssertEqual(t, len(f.transport.to), 0)
}

func TestReadRecipients(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.txt")
	writeFile(t, good, "  ada@example.org  \n# skip\n\"Bob B\" <bob@example.org>\n")
	got, err := readRecipients(good)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, strings.Join(got, ","), "ada@example.org,bob@example.org")

	bad := filepath.Join(dir, "bad.txt")
	writeFile(t, bad, "ada@example.org\nnot an address\n")
	_, err = readRecipients(bad)
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name the line", err)
	}

	_, err = readRecipients(filepath.Join(dir, "absent.txt"))
	testutil.AssertError(t, err)
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs("header", []string{"X-Priority=3", "X-Note=a=b", " Importance =Normal"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got["X-Priority"], "3")
	testutil.AssertEqual(t, got["X-Note"], "a=b")
	testutil.AssertEqual(t, got["Importance"], "Normal")

	_, err = parsePairs("header", []string{"=value"})
	testutil.AssertError(t, err)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	testutil.AssertNoError(t, root.Execute())
	testutil.AssertEqual(t, out.String(), "sendgate 1.2.3 (commit abc123, built 2026-01-01)\n")
}
