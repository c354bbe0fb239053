// Package report renders section analyses as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

// Section is one rendered part of a report.
type Section struct {
	Key   model.SectionKey
	Title string
	Text  string
}

// Report is a full fundamentals report for one document.
type Report struct {
	Company     string
	Source      string
	GeneratedAt time.Time
	Sections    []Section
}

// raw HTML in model output is escaped: goldmark omits it unless WithUnsafe is set.
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// CleanMarkdown strips an outer code fence that models sometimes wrap
// their whole answer in.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") || len(cleaned) < 6 {
		return cleaned
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	// Drop the opening fence line including any info string (```markdown).
	if i := strings.IndexByte(cleaned, '\n'); i >= 0 {
		cleaned = cleaned[i+1:]
	} else {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// ToHTML converts Markdown to an HTML fragment.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(CleanMarkdown(markdown)), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// Markdown assembles the report as a single Markdown document.
func (r Report) Markdown() string {
	var sb strings.Builder
	company := r.Company
	if company == "" {
		company = "Company"
	}
	fmt.Fprintf(&sb, "# %s Fundamentals Report\n\n", company)
	if r.Source != "" {
		fmt.Fprintf(&sb, "_Source: %s_", r.Source)
		if !r.GeneratedAt.IsZero() {
			fmt.Fprintf(&sb, " · _Generated %s_", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		sb.WriteString("\n\n")
	}
	for i, s := range r.Sections {
		fmt.Fprintf(&sb, "## %d. %s\n\n%s\n\n", i+1, s.Title, CleanMarkdown(s.Text))
	}
	return sb.String()
}

// HTML renders the report as a standalone page.
func (r Report) HTML() (string, error) {
	body, err := ToHTML(r.Markdown())
	if err != nil {
		return "", err
	}
	title := "Fundamentals Report"
	if r.Company != "" {
		title = r.Company + " " + title
	}
	return fmt.Sprintf(pageTemplate, html.EscapeString(title), body), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; max-width: 860px; margin: 2rem auto; line-height: 1.5; color: #222; }
h1 { border-bottom: 2px solid #2E86AB; padding-bottom: .3rem; }
h2 { margin-top: 2rem; color: #2E86AB; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .3rem .6rem; }
</style>
</head>
<body>
%s
</body>
</html>
`
