// Package normalize implements the branding-aware diff tokenizer (C1):
// splitting a unified diff by file, stripping headers/comments, and
// generalizing literals and identifiers into a canonical token stream.
package normalize

import (
	"regexp"
	"strings"
)

// FileDiffMap is a mapping from file path (as it appears after
// "diff --git a/<path> b/<path>") to that file's slice of the unified diff.
// Insertion order is preserved - it matters when the per-file slices are
// concatenated back together for the deep comparator (C5) - but is not
// otherwise semantically significant.
type FileDiffMap struct {
	order []string
	data  map[string]string
}

// NewFileDiffMap returns an empty FileDiffMap.
func NewFileDiffMap() *FileDiffMap {
	return &FileDiffMap{data: map[string]string{}}
}

// Set inserts or overwrites the diff slice for path, recording insertion
// order on first use.
func (m *FileDiffMap) Set(path, diff string) {
	if _, exists := m.data[path]; !exists {
		m.order = append(m.order, path)
	}
	m.data[path] = diff
}

// Get returns the diff slice for path and whether it is present.
func (m *FileDiffMap) Get(path string) (string, bool) {
	v, ok := m.data[path]
	return v, ok
}

// Len returns the number of files.
func (m *FileDiffMap) Len() int { return len(m.order) }

// Paths returns file paths in insertion order.
func (m *FileDiffMap) Paths() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Values returns the diff slices in insertion (== Paths()) order.
func (m *FileDiffMap) Values() []string {
	out := make([]string, len(m.order))
	for i, p := range m.order {
		out[i] = m.data[p]
	}
	return out
}

// Joined concatenates every file's diff slice, in insertion order, separated
// by newlines - the "combined diff" §4.5 feeds to the deep comparator.
func (m *FileDiffMap) Joined() string {
	return strings.Join(m.Values(), "\n")
}

var gitHeaderFileRe = regexp.MustCompile(` b/(.*)$`)

// mailboxProloguePrefixes are the headers tolerated and ignored while
// splitting a unified diff that was rendered in git-format-patch /
// mailbox style (From/Date/Subject/Signed-off-by/Co-authored-by, plus the
// bare "---" stat separator).
var mailboxProloguePrefixes = []string{
	"From ", "From: ", "Date: ", "Subject: ", "Signed-off-by: ", "Co-authored-by: ",
}

// SplitDiffByFile splits a unified diff into per-file slices, keyed by the
// path named in each "diff --git a/<path> b/<path>" header. Anything before
// the first such header - a mailbox prologue, or stray garbage - is dropped.
func SplitDiffByFile(diffText string) *FileDiffMap {
	files := NewFileDiffMap()
	var currentFile string
	var currentLines []string
	haveFile := false

	flush := func() {
		if haveFile && len(currentLines) > 0 {
			files.Set(currentFile, strings.Join(currentLines, "\n"))
		}
	}

	for _, line := range SplitLines(diffText) {
		if strings.HasPrefix(line, "diff --git") {
			flush()
			if m := gitHeaderFileRe.FindStringSubmatch(line); m != nil {
				currentFile = m[1]
			} else {
				currentFile = "unknown"
			}
			currentLines = []string{line}
			haveFile = true
			continue
		}
		if !haveFile {
			continue
		}
		if line == "---" || hasAnyPrefix(line, mailboxProloguePrefixes) {
			continue
		}
		currentLines = append(currentLines, line)
	}
	flush()
	return files
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// SplitLines splits text on the line endings unified diffs actually use:
// "\n" and "\r\n". Empty text yields no lines; a trailing newline leaves an
// empty final element, as strings.Split does.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// CountDiffLines counts added ("+" but not "+++") and removed ("-" but not
// "---") lines across a diff.
func CountDiffLines(diffText string) int {
	count := 0
	for _, line := range strings.Split(diffText, "\n") {
		if isAddedLine(line) || isRemovedLine(line) {
			count++
		}
	}
	return count
}

func isAddedLine(line string) bool {
	return strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++")
}

func isRemovedLine(line string) bool {
	return strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---")
}
