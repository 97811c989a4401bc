package normalize

import (
	"regexp"
	"strings"

	"github.com/valkey-io/verify-provenance/internal/core"
)

type brandingPattern struct {
	re          *regexp.Regexp
	replacement string
}

var genericServerSentinelPatterns = []brandingPattern{
	{regexp.MustCompile(`\bserver([A-Z])`), "BRAND$1"},
	{regexp.MustCompile(`\bServer([A-Z])`), "BRAND$1"},
	{regexp.MustCompile(`\bsentinel([A-Z])`), "BRAND$1"},
	{regexp.MustCompile(`\bSentinel([A-Z])`), "BRAND$1"},
}

// NormalizeBrandingTerms collapses every configured branding term and prefix
// - plus the historical server/Server/sentinel/Sentinel+CamelCase seeds - to
// the literal tokens "BRAND"/"BRAND_", for branding-only-diff comparison.
// It is not used for identifier normalization (see NormalizeIdentifier);
// this is strictly the pre-normalization equality check the triviality
// filter performs on raw diff lines.
func NormalizeBrandingTerms(text string, config *core.ProvenanceConfig) string {
	var patterns []brandingPattern
	for _, bp := range config.BrandingPairs {
		if bp.Source != "" {
			patterns = append(patterns,
				brandingPattern{wordBoundaryRe(bp.Source), "BRAND"},
				brandingPattern{wordBoundaryRe(lowerASCIILocal(bp.Source)), "BRAND"})
		}
		if bp.Target != "" {
			patterns = append(patterns,
				brandingPattern{wordBoundaryRe(bp.Target), "BRAND"},
				brandingPattern{wordBoundaryRe(lowerASCIILocal(bp.Target)), "BRAND"})
		}
	}
	for _, pp := range config.PrefixPairs {
		if pp.Source != "" {
			patterns = append(patterns, brandingPattern{wordBoundaryRe(pp.Source), "BRAND_"})
		}
		if pp.Target != "" {
			patterns = append(patterns, brandingPattern{wordBoundaryRe(pp.Target), "BRAND_"})
		}
	}
	patterns = append(patterns, genericServerSentinelPatterns...)

	result := text
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.replacement)
	}
	return result
}

func wordBoundaryRe(literal string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(literal))
}

// FilterBrandingChanges removes paired equal-length minus/plus runs from a
// diff whose branding-neutralized content is identical line-for-line - a
// rename-only hunk that carries no novel content once branding is erased.
func FilterBrandingChanges(diffText string, config *core.ProvenanceConfig) string {
	if diffText == "" {
		return diffText
	}
	lines := strings.Split(diffText, "\n")
	var filtered []string
	idx := 0
	for idx < len(lines) {
		line := lines[idx]
		if isRemovedLine(line) {
			minusLines := []string{line}
			j := idx + 1
			for j < len(lines) && isRemovedLine(lines[j]) {
				minusLines = append(minusLines, lines[j])
				j++
			}
			var plusLines []string
			for j < len(lines) && isAddedLine(lines[j]) {
				plusLines = append(plusLines, lines[j])
				j++
			}
			if len(minusLines) == len(plusLines) && len(minusLines) > 0 {
				allBranding := true
				for k := range minusLines {
					m := NormalizeBrandingTerms(minusLines[k][1:], config)
					p := NormalizeBrandingTerms(plusLines[k][1:], config)
					if m != p {
						allBranding = false
						break
					}
				}
				if allBranding {
					idx = j
					continue
				}
			}
		}
		filtered = append(filtered, line)
		idx++
	}
	return strings.Join(filtered, "\n")
}
