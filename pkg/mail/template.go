package mail

import (
	"bytes"
	"fmt"
	"html"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// Template is a message body loaded from disk.
//
// Bodies are text/template sources; placeholders look like {{.domain}}.
// Markdown bodies (".md") are converted to HTML after substitution.
type Template struct {
	Name string

	// Subject comes from the front matter and is itself a template.
	Subject string

	body     *template.Template
	text     *template.Template
	subject  *template.Template
	markdown bool
}

type frontMatter struct {
	Subject string `yaml:"subject"`
}

const frontMatterDelim = "---"

// LoadTemplate reads the HTML or Markdown body name from fsys and, when
// textName is not empty, the plain-text body textName. A body may start
// with a YAML front matter block delimited by "---" lines.
func LoadTemplate(fsys fs.FS, name, textName string) (*Template, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	t := &Template{
		Name:     name,
		Subject:  meta.Subject,
		markdown: strings.EqualFold(path.Ext(name), ".md"),
	}

	if t.body, err = parse(name, body); err != nil {
		return nil, err
	}
	if t.subject, err = parse(name+":subject", meta.Subject); err != nil {
		return nil, err
	}

	if textName != "" {
		rawText, err := fs.ReadFile(fsys, textName)
		if err != nil {
			return nil, fmt.Errorf("load text template: %w", err)
		}
		if t.text, err = parse(textName, string(rawText)); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Rendered holds the output of Template.Render.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render substitutes vars into the template. Referencing a variable that
// is not in vars is an error.
func (t *Template) Render(vars map[string]string) (Rendered, error) {
	var out Rendered
	var err error

	if out.Subject, err = execute(t.subject, vars); err != nil {
		return Rendered{}, err
	}

	body, err := execute(t.body, vars)
	if err != nil {
		return Rendered{}, err
	}
	if t.markdown {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(body), &buf); err != nil {
			return Rendered{}, fmt.Errorf("render %s: %w", t.Name, err)
		}
		body = buf.String()
	}
	out.HTML = body

	if t.text != nil {
		if out.Text, err = execute(t.text, vars); err != nil {
			return Rendered{}, err
		}
	} else {
		out.Text = PlainText(out.HTML)
	}

	return out, nil
}

var (
	plainPolicy = bluemonday.StrictPolicy()
	blankLines  = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	blockEnds   = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|table|ul|ol|blockquote)>|<br\s*/?>`)
)

// PlainText derives a plain-text body from HTML by removing all markup.
func PlainText(htmlBody string) string {
	withBreaks := blockEnds.ReplaceAllStringFunc(htmlBody, func(tag string) string {
		return tag + "\n"
	})
	text := html.UnescapeString(plainPolicy.Sanitize(withBreaks))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func splitFrontMatter(raw []byte) (frontMatter, string, error) {
	var meta frontMatter
	content := strings.ReplaceAll(string(raw), "\r\n", "\n")

	if !strings.HasPrefix(content, frontMatterDelim+"\n") {
		return meta, content, nil
	}

	rest := content[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+frontMatterDelim) {
			end = len(rest) - len(frontMatterDelim) - 1
		} else {
			return meta, "", fmt.Errorf("unterminated front matter")
		}
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, "", fmt.Errorf("front matter: %w", err)
	}

	body := ""
	if skip := end + len(frontMatterDelim) + 2; skip <= len(rest) {
		body = rest[skip:]
	}
	return meta, body, nil
}

func parse(name, src string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

func execute(t *template.Template, vars map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
