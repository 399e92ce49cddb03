package reporting

import (
	"fmt"
	"strings"
)

const (
	renderDateLayout      = "2006-01-02"
	renderTimestampLayout = "2006-01-02 15:04"
)

// RenderRepositoryReport renders a repository report to Markdown. The
// layout is driven entirely from the stored row, so re-rendering the same
// report always yields identical bytes.
func RenderRepositoryReport(report *Report, owner, name string) string {
	var b strings.Builder
	summary := report.MachineSummary

	fmt.Fprintf(&b, "# %s/%s — Status report (%s to %s)\n\n",
		owner, name,
		report.WindowStart.UTC().Format(renderDateLayout),
		report.WindowEnd.UTC().Format(renderDateLayout))

	fmt.Fprintf(&b, "**Status:** %s\n", summary.Status.Label())

	if summary.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(summary.Summary)
		b.WriteString("\n")
	}

	writeListSection(&b, "Highlights", summary.Highlights)
	writeListSection(&b, "Risks", summary.Risks)
	writeListSection(&b, "Next steps", summary.NextSteps)

	fmt.Fprintf(&b, "\n---\n*Generated %s UTC · model %s · window %s to %s · report %s*\n",
		report.GeneratedAt.UTC().Format(renderTimestampLayout),
		report.Model,
		report.WindowStart.UTC().Format(renderDateLayout),
		report.WindowEnd.UTC().Format(renderDateLayout),
		report.ID)

	return b.String()
}

// writeListSection appends a bulleted section, eliding it entirely when
// the list is empty
func writeListSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
