package core

// DefaultPreservedKeywords is the curated union of control-flow, typing, and
// test-DSL keywords across the languages this system has historically seen
// (C/C++, Python, Tcl) that identifier debranding must never touch. It is a
// default, not a hardcoded requirement: ProvenanceConfig.PreservedKeywords
// overrides it entirely when set.
var DefaultPreservedKeywords = buildDefaultPreservedKeywords()

func buildDefaultPreservedKeywords() map[string]struct{} {
	words := []string{
		// C / C++
		"int", "char", "void", "long", "short", "double", "float",
		"unsigned", "signed", "const", "static", "volatile", "struct",
		"union", "enum", "typedef", "if", "else", "for", "while", "do",
		"switch", "case", "default", "break", "continue", "return",
		"goto", "sizeof", "NULL", "true", "false",
		// Python
		"def", "class", "import", "from", "try", "except", "raise",
		"finally", "with", "as", "pass", "lambda", "yield", "await",
		"async", "None", "True", "False", "is", "in", "not", "and", "or",
		// Tcl (Valkey/Redis test DSL)
		"proc", "set", "elseif", "foreach", "expr", "catch", "puts",
		"after", "upvar", "global", "variable", "namespace", "package",
		"source", "test", "r", "assert", "assert_equal", "assert_error",
		"assert_match",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// lowerASCII lowercases only ASCII letters, leaving everything else (and any
// non-ASCII byte) untouched. Identifier debranding must stay
// locale-independent: Unicode case folding would make matches depend on the
// running machine's locale.
func lowerASCII(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
