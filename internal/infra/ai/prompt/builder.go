package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	"github.com/bryanwahyu/aml-analyser/internal/domain/analysis"
)

const (
	NoDocuments  = "No CDD/CRP documents provided."
	NoRFIOptions = "No predefined RFI options available."
)

// FormatAlertInformation renders one "- **key**: value" line per field.
// An empty alert renders as "".
func FormatAlertInformation(info *alerts.Information) string {
	lines := make([]string, 0, info.Len())
	info.Each(func(key string, v analysis.Value) {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", key, v))
	})
	return strings.Join(lines, "\n")
}

// FormatDocuments renders every document as a numbered section with its
// content in a fenced block, or its summary when there is no content.
func FormatDocuments(docs []alerts.Document) string {
	if len(docs) == 0 {
		return NoDocuments
	}

	blocks := make([]string, 0, len(docs)*6)
	for i, d := range docs {
		blocks = append(blocks,
			fmt.Sprintf("### Document %d: %s", i+1, orDefault(d.Filename, "Unknown")),
			fmt.Sprintf("- **Type**: %s", orDefault(d.FileType, "Unknown")),
			fmt.Sprintf("- **Description**: %s", orDefault(d.Description, "N/A")),
		)
		switch {
		case d.Content != nil:
			blocks = append(blocks, "\n**Content:**", "```\n"+*d.Content+"\n```")
		case d.Summary != nil:
			blocks = append(blocks, "\n**Summary:** "+*d.Summary)
		}
		blocks = append(blocks, "")
	}
	return strings.Join(blocks, "\n")
}

// FormatRFIOptions renders a 1-based numbered list.
func FormatRFIOptions(rfis []string) string {
	if len(rfis) == 0 {
		return NoRFIOptions
	}
	lines := make([]string, len(rfis))
	for i, r := range rfis {
		lines[i] = fmt.Sprintf("%d. %s", i+1, r)
	}
	return strings.Join(lines, "\n")
}

// BuildUserMessage renders the user template with the formatted inputs bound
// to alert_information, cdd_crp_documents, rfi_options and additional_context.
// A template that references any other variable fails to render.
func BuildUserMessage(tmpl string, info *alerts.Information, docs []alerts.Document, rfis []string, additionalContext string) (string, error) {
	t, err := template.New("user").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse user template: %w", err)
	}

	vars := map[string]any{
		"alert_information":  FormatAlertInformation(info),
		"cdd_crp_documents":  FormatDocuments(docs),
		"rfi_options":        FormatRFIOptions(rfis),
		"additional_context": additionalContext,
	}

	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render user template: %w", err)
	}
	return b.String(), nil
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
