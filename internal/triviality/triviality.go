// Package triviality implements the triviality filter (C3): the size
// floor, code-movement detector, and branding-only-change filter that
// together suppress false-positive matches from pure renames, reformats,
// and rebrand-only diffs before they ever reach Layer-1 search.
package triviality

import (
	"strings"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/normalize"
)

const (
	// MinTokens is the combined-normalized-token floor below which a diff
	// is too small to search meaningfully.
	MinTokens = 5
	// MinLines is the combined added+removed line-count floor.
	MinLines = 5
	// MinNetNewLines is the net-new-line floor below which a diff is
	// treated as movement/deletion rather than new content.
	MinNetNewLines = 5
	// CodeMovementThreshold is the movement_ratio at or above which a
	// diff is flagged as a reshuffle of pre-existing lines.
	CodeMovementThreshold = 0.70
)

// MovementResult holds the code-movement detector's intermediate figures.
type MovementResult struct {
	MovementRatio float64
	NetNew        int
	Trivial       bool
}

var commentPrefixes = []string{"//", "/*", "#"}

func isCommentOnly(content string) bool {
	trimmed := strings.TrimSpace(content)
	for _, p := range commentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// DetectCodeMovement extracts added/removed line content (stripped of
// leading/trailing whitespace, comment-only lines excluded) from a raw
// unified diff and computes the movement ratio and net-new line count used
// to flag pure reshuffles.
func DetectCodeMovement(diffText string) MovementResult {
	var added, removed []string
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			content := strings.TrimSpace(line[1:])
			if content != "" && !isCommentOnly(content) {
				added = append(added, content)
			}
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			content := strings.TrimSpace(line[1:])
			if content != "" && !isCommentOnly(content) {
				removed = append(removed, content)
			}
		}
	}

	addedSet := make(map[string]struct{}, len(added))
	for _, a := range added {
		addedSet[a] = struct{}{}
	}
	removedSet := make(map[string]struct{}, len(removed))
	for _, r := range removed {
		removedSet[r] = struct{}{}
	}
	intersection := 0
	for a := range addedSet {
		if _, ok := removedSet[a]; ok {
			intersection++
		}
	}

	var movementRatio float64
	if len(added) > 0 {
		movementRatio = float64(intersection) / float64(len(added))
	}
	netNew := len(added) - len(removed)

	return MovementResult{
		MovementRatio: movementRatio,
		NetNew:        netNew,
		Trivial:       netNew < MinNetNewLines || movementRatio >= CodeMovementThreshold,
	}
}

// PassesSizeFloor reports whether normalizedText and the raw diff it came
// from both clear the minimum-tokens and minimum-lines floors.
func PassesSizeFloor(normalizedText, diffText string) bool {
	tokenCount := len(strings.Fields(strings.ReplaceAll(normalizedText, "\n", " ")))
	return tokenCount >= MinTokens && normalize.CountDiffLines(diffText) >= MinLines
}

// IsTrivial runs the full C3 pipeline: the branding-only filter first (a
// diff that is pure rebranding is stripped down before the other checks
// see it), then the size floor, then the code-movement detector. It
// returns true when diffText must not be searched.
func IsTrivial(diffText string, config *core.ProvenanceConfig) bool {
	filtered := normalize.FilterBrandingChanges(diffText, config)
	if strings.TrimSpace(filtered) == "" {
		return true
	}
	normalized := normalize.NormalizeDiff(filtered, config, nil)
	if !PassesSizeFloor(normalized, filtered) {
		return true
	}
	return DetectCodeMovement(filtered).Trivial
}
