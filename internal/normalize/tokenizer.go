package normalize

import (
	"regexp"
	"strings"

	"github.com/valkey-io/verify-provenance/internal/core"
)

// headerPrefixes are unified-diff header lines dropped outright before
// classifying the remainder as change/context.
var headerPrefixes = []string{"diff --git", "index ", "--- ", "+++ ", "@@ "}

// lineCommentRe strips a trailing "// ..." C++-style comment.
var lineCommentRe = regexp.MustCompile(`//.*`)

// blockCommentRe strips "/* ... */" C-style block comments, non-greedily -
// multiple occurrences on one line are all removed since regexp.ReplaceAll
// replaces every non-overlapping match.
var blockCommentRe = regexp.MustCompile(`/\*.*?\*/`)

// shellCommentRe strips a trailing "# ..." shell-style comment. The
// mandatory space after '#' keeps preprocessor directives like "#define"
// intact.
var shellCommentRe = regexp.MustCompile(`#\s.*`)

// tokenRe lexes a line's content by greedy longest-match over, in order:
// double-quoted strings, single-quoted strings, identifiers, numeric
// literals, and punctuation runs.
var tokenRe = regexp.MustCompile(`"(?:[^"\\]|\\.)*"` + `|` + `'(?:[^'\\]|\\.)*'` + `|[A-Za-z_][A-Za-z0-9_]*` + `|[0-9]+[uUlLfF]*` + `|[^\w\s]+`)

var leadingDigitRe = regexp.MustCompile(`^[0-9]`)
var leadingIdentRe = regexp.MustCompile(`^[A-Za-z_]`)

// NormalizeDiff transforms a unified diff into a newline-separated sequence
// of space-separated tokens with branding neutralized, literals
// generalized, and comments stripped.
//
// includeContext overrides the context-inclusion heuristic when non-nil:
// when nil, context lines are included only if the diff has between 1 and 5
// change lines (inclusive).
func NormalizeDiff(diffText string, config *core.ProvenanceConfig, includeContext *bool) string {
	diffLines := strings.Split(diffText, "\n")

	changeCount := 0
	for _, l := range diffLines {
		if strings.HasPrefix(l, "+++") || strings.HasPrefix(l, "---") {
			continue
		}
		if strings.HasPrefix(l, "+") || strings.HasPrefix(l, "-") {
			changeCount++
		}
	}

	var shouldIncludeContext bool
	switch {
	case includeContext != nil:
		shouldIncludeContext = *includeContext
	default:
		shouldIncludeContext = changeCount > 0 && changeCount <= 5
	}

	keywords := config.Keywords()

	var outLines []string
	for _, raw := range diffLines {
		line := strings.TrimRight(raw, " \t\r\n\v\f")
		if hasAnyPrefix(line, headerPrefixes) {
			continue
		}

		isChange := strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")
		isContext := !isChange && len(line) > 0 && !strings.HasPrefix(line, "diff")

		if (isContext && !shouldIncludeContext) || !(isChange || isContext) {
			continue
		}
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}

		var content string
		if len(line) > 0 {
			content = line[1:]
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		content = lineCommentRe.ReplaceAllString(content, "")
		content = blockCommentRe.ReplaceAllString(content, "")
		content = strings.TrimSpace(shellCommentRe.ReplaceAllString(content, ""))
		if content == "" || strings.HasPrefix(content, "*") {
			continue
		}

		tokens := tokenRe.FindAllString(content, -1)
		normalized := make([]string, 0, len(tokens))
		for _, t := range tokens {
			switch {
			case strings.HasPrefix(t, `"`) || strings.HasPrefix(t, `'`):
				normalized = append(normalized, "STR")
			case leadingDigitRe.MatchString(t):
				normalized = append(normalized, "NUM")
			case leadingIdentRe.MatchString(t):
				if _, preserved := keywords[t]; preserved {
					normalized = append(normalized, t)
				} else {
					normalized = append(normalized, NormalizeIdentifier(t, config))
				}
			default:
				normalized = append(normalized, stripWhitespace(t))
			}
		}
		outLines = append(outLines, strings.Join(normalized, " "))
	}
	return strings.Join(outLines, "\n")
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
