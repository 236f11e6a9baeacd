// Package report assembles the Markdown story file (README.md) from a
// narrative and the rendered plot images.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/autolysis/internal/narrative"
	"github.com/KaramelBytes/autolysis/internal/utils"
	"github.com/KaramelBytes/autolysis/internal/viz"
)

// FileName is the report written into the output directory.
const FileName = "README.md"

// DefaultTitle heads every report.
const DefaultTitle = "Automated Data Analysis"

// Report is the in-memory form of README.md.
type Report struct {
	Title     string
	Narrative narrative.Narrative
	Artifacts []viz.Artifact
}

// Build collects the parts of a report. Artifacts keep their order.
func Build(n narrative.Narrative, artifacts []viz.Artifact) *Report {
	return &Report{Title: DefaultTitle, Narrative: n, Artifacts: artifacts}
}

// Markdown renders the report. Images are referenced by base name, so the
// report resolves them relative to its own directory.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Narrative.Available {
		b.WriteString(strings.TrimSpace(r.Narrative.Text))
		b.WriteString("\n")
	} else {
		reason := r.Narrative.Reason
		if reason == "" {
			reason = "no narrative was produced"
		}
		fmt.Fprintf(&b, "_Narrative unavailable: %s._\n", strings.TrimSuffix(reason, "."))
	}
	if len(r.Artifacts) == 0 {
		return b.String()
	}
	b.WriteString("\n## Visualizations\n\n")
	for _, a := range r.Artifacts {
		fmt.Fprintf(&b, "![%s](%s)\n", altText(a), link(filepath.Base(a.Path)))
	}
	return b.String()
}

// Write stores the report as README.md in outDir and returns its path.
func (r *Report) Write(outDir string) (string, error) {
	path := filepath.Join(outDir, FileName)
	if err := utils.SafeWriteFile(path, []byte(r.Markdown())); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func altText(a viz.Artifact) string {
	switch a.Kind {
	case viz.KindHeatmap:
		return "Correlation Heatmap"
	case viz.KindHistogram:
		return "Distribution of " + escapeAlt(a.Column)
	}
	return escapeAlt(strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path)))
}

func escapeAlt(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}

// link wraps destinations that CommonMark would otherwise split.
func link(name string) string {
	if strings.ContainsAny(name, " ()<>") {
		return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(name) + ">"
	}
	return name
}
