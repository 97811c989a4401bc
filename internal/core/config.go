package core

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// BrandPair is a (source_brand, target_brand) tuple. Either side may be empty.
type BrandPair struct {
	Source string
	Target string
}

// PrefixPair is a (source_prefix, target_prefix) tuple. Either side may be empty.
type PrefixPair struct {
	Source string
	Target string
}

// ProvenanceConfig is immutable per-run configuration consumed by the
// tokenizer/normalizer (C1) and the triviality filter (C3). Once built it is
// never mutated; build a new one to change settings.
type ProvenanceConfig struct {
	// SourceRepo and TargetRepo are opaque "owner/name" strings identifying
	// the provenance-source and candidate-target repositories.
	SourceRepo string
	TargetRepo string

	// BrandingPairs neutralizes cosmetic rebranding, e.g. ("Redis", "Valkey").
	BrandingPairs []BrandPair

	// PrefixPairs neutralizes cosmetic symbol-prefix rebranding, e.g. ("RM_", "VM_").
	PrefixPairs []PrefixPair

	// InfrastructurePatterns lists substrings; any file path containing one
	// of them is treated as infrastructure (vendored code, build files,
	// docs) and excluded from first-layer matching.
	InfrastructurePatterns []string

	// ExtraBrandingTerms are additional lowercase identifier-debranding seeds
	// beyond BrandingPairs/PrefixPairs. The historical "keydb" carry-over
	// from the original implementation belongs here, not hardcoded - see
	// §9's Open Questions.
	ExtraBrandingTerms []string

	// PreservedKeywords is the set of identifiers exempt from debranding.
	// Defaults to DefaultPreservedKeywords when unset.
	PreservedKeywords map[string]struct{}
}

// yamlConfig mirrors ProvenanceConfig's field shape for (de)serialization,
// keeping the exported struct's pair types (not 2-tuples) ergonomic for Go
// callers while still accepting a flat YAML document on disk.
type yamlConfig struct {
	SourceRepo              string     `yaml:"source_repo"`
	TargetRepo              string     `yaml:"target_repo"`
	BrandingPairs           [][2]string `yaml:"branding_pairs"`
	PrefixPairs             [][2]string `yaml:"prefix_pairs"`
	InfrastructurePatterns  []string   `yaml:"infrastructure_patterns"`
	ExtraBrandingTerms      []string   `yaml:"extra_branding_terms"`
	PreservedKeywords       []string   `yaml:"preserved_keywords"`
}

// LoadConfigFile reads a YAML ProvenanceConfig document from path.
func LoadConfigFile(path string) (*ProvenanceConfig, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	cfg := &ProvenanceConfig{
		SourceRepo:             y.SourceRepo,
		TargetRepo:             y.TargetRepo,
		InfrastructurePatterns: y.InfrastructurePatterns,
		ExtraBrandingTerms:     y.ExtraBrandingTerms,
	}
	for _, p := range y.BrandingPairs {
		cfg.BrandingPairs = append(cfg.BrandingPairs, BrandPair{Source: p[0], Target: p[1]})
	}
	for _, p := range y.PrefixPairs {
		cfg.PrefixPairs = append(cfg.PrefixPairs, PrefixPair{Source: p[0], Target: p[1]})
	}
	if len(y.PreservedKeywords) > 0 {
		cfg.PreservedKeywords = make(map[string]struct{}, len(y.PreservedKeywords))
		for _, k := range y.PreservedKeywords {
			cfg.PreservedKeywords[k] = struct{}{}
		}
	}
	return cfg, nil
}

// Keywords returns the effective preserved-keyword set: PreservedKeywords if
// configured, else DefaultPreservedKeywords.
func (c *ProvenanceConfig) Keywords() map[string]struct{} {
	if c.PreservedKeywords != nil {
		return c.PreservedKeywords
	}
	return DefaultPreservedKeywords
}

// BrandingTerms collects every lowercase branding/extra term configured,
// mirroring normalize_identifier's "branding_terms" set in the original
// implementation (including the "keydb" seed, now expressed as an extra term
// rather than a hardcoded literal).
func (c *ProvenanceConfig) BrandingTerms() []string {
	seen := map[string]struct{}{}
	var terms []string
	add := func(s string) {
		if s == "" {
			return
		}
		lower := lowerASCII(s)
		if _, ok := seen[lower]; ok {
			return
		}
		seen[lower] = struct{}{}
		terms = append(terms, lower)
	}
	for _, p := range c.BrandingPairs {
		add(p.Source)
		add(p.Target)
	}
	for _, t := range c.ExtraBrandingTerms {
		add(t)
	}
	return terms
}

// IsInfrastructureFile reports whether filename matches any configured
// infrastructure substring pattern.
func (c *ProvenanceConfig) IsInfrastructureFile(filename string) bool {
	for _, p := range c.InfrastructurePatterns {
		if p != "" && containsASCII(filename, p) {
			return true
		}
	}
	return false
}

func containsASCII(haystack, needle string) bool {
	return len(needle) == 0 || indexASCII(haystack, needle) >= 0
}

func indexASCII(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}
