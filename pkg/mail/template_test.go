package mail

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/vnykmshr/sendgate/internal/testutil"
)

var templates = fstest.MapFS{
	"welcome.html": {Data: []byte(`---
subject: Welcome to {{.domain}}
---
<p>Start here: <a href="{{.tracking_link}}">{{.tracking_link}}</a></p>
<p><a href="{{.unsubscribe_link}}">Unsubscribe</a></p>
`)},
	"welcome.txt": {Data: []byte("Start here: {{.tracking_link}}\nUnsubscribe: {{.unsubscribe_link}}\n")},
	"news.md": {Data: []byte("---\nsubject: News\n---\n# Hello {{.name}}\n\nRead [the post]({{.link}}).\n")},
	"plain.html":  {Data: []byte("<p>No front matter for {{.name}}</p>")},
	"broken.html": {Data: []byte("---\nsubject: [unclosed\n---\nbody")},
	"open.html":   {Data: []byte("---\nsubject: x\nbody")},
	"syntax.html": {Data: []byte("{{.name")},
}

var vars = map[string]string{
	"domain":           "example.com",
	"tracking_link":    "https://example.com/start",
	"unsubscribe_link": "mailto:unsubscribe@example.com?subject=unsubscribe",
	"name":             "Ada",
	"link":             "https://example.com/post",
}

func TestLoadTemplate_HTMLWithText(t *testing.T) {
	tmpl, err := LoadTemplate(templates, "welcome.html", "welcome.txt")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, tmpl.Subject, "Welcome to {{.domain}}")

	out, err := tmpl.Render(vars)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, out.Subject, "Welcome to example.com")
	if !strings.Contains(out.HTML, `<a href="https://example.com/start">`) {
		t.Errorf("HTML not rendered: %s", out.HTML)
	}
	if strings.Contains(out.HTML, "subject:") {
		t.Error("front matter leaked into the body")
	}
	testutil.AssertEqual(t, out.Text,
		"Start here: https://example.com/start\nUnsubscribe: mailto:unsubscribe@example.com?subject=unsubscribe\n")
}

func TestLoadTemplate_Markdown(t *testing.T) {
	tmpl, err := LoadTemplate(templates, "news.md", "")
	testutil.AssertNoError(t, err)

	out, err := tmpl.Render(vars)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, out.Subject, "News")
	if !strings.Contains(out.HTML, "<h1>Hello Ada</h1>") {
		t.Errorf("heading not converted: %s", out.HTML)
	}
	if !strings.Contains(out.HTML, `<a href="https://example.com/post">the post</a>`) {
		t.Errorf("link not converted: %s", out.HTML)
	}
	testutil.AssertEqual(t, out.Text, "Hello Ada\n\nRead the post.")
}

func TestLoadTemplate_NoFrontMatter(t *testing.T) {
	tmpl, err := LoadTemplate(templates, "plain.html", "")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, tmpl.Subject, "")

	out, err := tmpl.Render(vars)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, out.HTML, "<p>No front matter for Ada</p>")
	testutil.AssertEqual(t, out.Text, "No front matter for Ada")
}

func TestLoadTemplate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		textFile string
	}{
		{"missing file", "nope.html", ""},
		{"missing text file", "plain.html", "nope.txt"},
		{"bad front matter", "broken.html", ""},
		{"unterminated front matter", "open.html", ""},
		{"template syntax", "syntax.html", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTemplate(templates, tt.file, tt.textFile)
			testutil.AssertError(t, err)
		})
	}
}

func TestRender_MissingVariable(t *testing.T) {
	tmpl, err := LoadTemplate(templates, "plain.html", "")
	testutil.AssertNoError(t, err)

	_, err = tmpl.Render(map[string]string{"domain": "example.com"})
	testutil.AssertError(t, err)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"paragraphs", "<p>Hello <b>Ada</b></p><p>Bye &amp; thanks</p>", "Hello Ada\nBye & thanks"},
		{"line breaks", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"script dropped", "<script>alert(1)</script><p>safe</p>", "safe"},
		{"blank lines collapsed", "<div>a</div>\n\n\n\n<div>b</div>", "a\n\nb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, PlainText(tt.html), tt.want)
		})
	}
}
