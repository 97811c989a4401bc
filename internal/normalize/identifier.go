package normalize

import (
	"strings"

	"github.com/valkey-io/verify-provenance/internal/core"
)

// NormalizeIdentifier removes branding from an identifier while preserving
// its semantic meaning, by first-match-wins application of:
//
//  1. prefix-pair substitution to the literal "M_" prefix,
//  2. "<Brand>Module"/"<brand>module" substitution to "Module"/"module",
//  3. removal of a bare branding-term prefix,
//  4. removal of a "term_"-separated branding-term prefix,
//  5. removal of a branding term at an internal camelCase/underscore boundary.
//
// Only the first matching rule applies; there is no recursive rescan.
func NormalizeIdentifier(identifier string, config *core.ProvenanceConfig) string {
	for _, pp := range config.PrefixPairs {
		for _, prefix := range [2]string{pp.Source, pp.Target} {
			if prefix == "" {
				continue
			}
			if strings.HasPrefix(identifier, prefix) || strings.HasPrefix(identifier, lowerASCIILocal(prefix)) {
				return "M_" + identifier[len(prefix):]
			}
		}
	}

	for _, bp := range config.BrandingPairs {
		for _, brand := range [2]string{bp.Source, bp.Target} {
			if brand == "" {
				continue
			}
			if strings.HasPrefix(identifier, brand+"Module") {
				return "Module" + identifier[len(brand)+6:]
			}
			if strings.HasPrefix(identifier, lowerASCIILocal(brand)+"Module") {
				return "module" + identifier[len(brand)+6:]
			}
		}
	}

	lowerID := lowerASCIILocal(identifier)
	for _, term := range config.BrandingTerms() {
		// Pattern 1: bare prefix.
		if strings.HasPrefix(lowerID, term) {
			remainder := identifier[len(term):]
			if remainder != "" {
				if remainder[0] == '_' {
					remainder = remainder[1:]
				}
				if remainder == "" {
					return identifier
				}
				return remainder
			}
		}

		// Pattern 2: underscore-separated prefix.
		if strings.HasPrefix(lowerID, term+"_") {
			return identifier[len(term)+1:]
		}

		// Pattern 3: infix at a camelCase/underscore boundary. The scan
		// intentionally never reaches the final len(term) characters of the
		// identifier - this mirrors the upstream implementation's loop
		// bound exactly, so a term occupying the very tail of an
		// identifier (with nothing after it) is left untouched here and
		// must already have been caught by pattern 1/2 above.
		limit := len(identifier) - len(term)
		for i := 1; i < limit; i++ {
			if lowerASCIILocal(identifier[i:i+len(term)]) != term {
				continue
			}
			beforeOK := identifier[i-1] == '_' || isUpperASCII(identifier[i])
			afterOK := identifier[i+len(term)] == '_' || isUpperASCII(identifier[i+len(term)])
			if !beforeOK || !afterOK {
				continue
			}
			result := identifier[:i] + identifier[i+len(term):]
			if i > 0 && i < len(result) && result[i-1] == '_' && result[i] == '_' {
				result = result[:i] + result[i+1:]
			}
			if result == "" {
				return identifier
			}
			return result
		}
	}
	return identifier
}

func isUpperASCII(b byte) bool { return b >= 'A' && b <= 'Z' }

// lowerASCIILocal lowercases only ASCII letters. Kept local to this package
// (rather than exported from core) since it operates on arbitrary
// identifier/brand substrings, not just config-declared terms.
func lowerASCIILocal(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
