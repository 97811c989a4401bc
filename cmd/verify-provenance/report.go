package main

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/match"
)

// tmpl renders text against data with sprig's function library mixed in,
// the same helper hercules's root command uses to render its usage
// template - reused here for the run-summary banner instead.
func tmpl(w io.Writer, text string, data interface{}) error {
	t := template.New("report").Funcs(sprig.TxtFuncMap())
	template.Must(t.Parse(text))
	return t.Execute(w, data)
}

const summaryTemplate = `checking {{.TargetRepo | default "target"}} against {{.SourceRepo | default "source"}}
  threshold:   {{.Threshold}}
  max report:  {{.MaxReport}}
  pr db:       {{.PRDBPath | default "(none)"}}
  commit db:   {{.CommitDBPath | default "(none)"}}
{{- if .IgnoreDate}}
  date filter: disabled
{{- end}}
`

type runSummary struct {
	SourceRepo   string
	TargetRepo   string
	Threshold    float64
	MaxReport    int
	PRDBPath     string
	CommitDBPath string
	IgnoreDate   bool
}

func printRunSummary(w io.Writer, s runSummary) {
	if err := tmpl(w, summaryTemplate, s); err != nil {
		fmt.Fprintf(w, "(summary template error: %v)\n", err)
	}
}

// formatFinding renders the canonical finding line from §6: "matches
// <repo> PR #<n> (similarity: <f.3>, method: ...)" or the commit
// equivalent.
func formatFinding(repo string, f match.Finding) string {
	var subject string
	switch f.Kind {
	case db.KindPRs:
		subject = "PR #" + f.Identifier
	case db.KindCommits:
		subject = "commit " + f.Identifier
	default:
		subject = f.Identifier
	}
	return fmt.Sprintf("matches %s %s (similarity: %.3f, method: %s)", repo, subject, f.Similarity, f.Method)
}

func joinFindings(repo string, findings []match.Finding) string {
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = formatFinding(repo, f)
	}
	return strings.Join(lines, "\n")
}
