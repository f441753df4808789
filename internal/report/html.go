package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ReportTitle heads the combined HTML report.
const ReportTitle = "Balance Sheet Buddy - Analysis Report"

// ReportInput is everything the combined HTML report can show. Empty
// sections are left out.
type ReportInput struct {
	Classification string
	Reconciliation string
	Summary        string
	Records        []domain.ClassificationRecord
	GeneratedAt    time.Time
	// RenderMarkdown renders section text as GitHub-flavoured markdown
	// instead of a preformatted block.
	RenderMarkdown bool
}

type htmlSection struct {
	Title    string
	Text     string
	Rendered template.HTML
	Markdown bool
}

type htmlRecord struct {
	domain.ClassificationRecord
	AmountText  string
	StatusClass string
}

type htmlPage struct {
	Title     string
	Generated string
	Sections  []htmlSection
	Records   []htmlRecord
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; background-color: #f5f5f5; }
.header { background-color: #1f77b4; color: white; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
.section { background-color: white; padding: 20px; margin-bottom: 20px; border-radius: 5px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
h2 { color: #1f77b4; border-bottom: 2px solid #1f77b4; padding-bottom: 10px; }
pre { white-space: pre-wrap; line-height: 1.6; }
.timestamp { color: #666; font-size: 0.9em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 6px; text-align: left; }
.status-pass { color: green; font-weight: bold; }
.status-mismatch { color: red; font-weight: bold; }
</style>
</head>
<body>
<div class="header">
<h1>{{.Title}}</h1>
<p class="timestamp">Generated: {{.Generated}}</p>
</div>
{{- if .Records}}
<div class="section">
<h2>Classification View</h2>
<table>
<tr><th>Account</th><th>Balance_Type</th><th>Amount</th><th>Category</th><th>Subcategory</th><th>Status</th><th>Commentary</th></tr>
{{- range .Records}}
<tr><td>{{.Account}}</td><td>{{.BalanceType}}</td><td>{{.AmountText}}</td><td>{{.Category}}</td><td>{{.Subcategory}}</td><td class="{{.StatusClass}}">{{.Status}}</td><td>{{.Commentary}}</td></tr>
{{- end}}
</table>
</div>
{{- end}}
{{- range .Sections}}
<div class="section">
<h2>{{.Title}}</h2>
{{if .Markdown}}{{.Rendered}}{{else}}<pre>{{.Text}}</pre>{{end}}
</div>
{{- end}}
</body>
</html>
`))

// CombinedHTML renders the classification, reconciliation and executive
// summary outputs as one HTML document.
func CombinedHTML(in ReportInput) (string, error) {
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	page := htmlPage{
		Title:     ReportTitle,
		Generated: generated.Format("2006-01-02 15:04:05"),
	}

	for _, s := range []struct{ title, text string }{
		{"Classification Analysis", in.Classification},
		{"Account-Level Reconciliation", in.Reconciliation},
		{"Executive Summary", in.Summary},
	} {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		sec := htmlSection{Title: s.title, Text: s.text}
		if in.RenderMarkdown {
			var buf bytes.Buffer
			if err := markdown.Convert([]byte(s.text), &buf); err != nil {
				return "", fmt.Errorf("CombinedHTML: render %s: %w", s.title, err)
			}
			// goldmark drops raw HTML unless WithUnsafe is set
			sec.Rendered = template.HTML(buf.String())
			sec.Markdown = true
		}
		page.Sections = append(page.Sections, sec)
	}

	for _, r := range in.Records {
		page.Records = append(page.Records, htmlRecord{
			ClassificationRecord: r,
			AmountText:           r.Amount.StringFixed(2),
			StatusClass:          statusClass(r.Status),
		})
	}

	var out bytes.Buffer
	if err := reportTemplate.Execute(&out, page); err != nil {
		return "", fmt.Errorf("CombinedHTML: execute template: %w", err)
	}
	return out.String(), nil
}

func statusClass(s domain.Status) string {
	switch s {
	case domain.StatusPass:
		return "status-pass"
	case domain.StatusMismatch:
		return "status-mismatch"
	}
	return ""
}
