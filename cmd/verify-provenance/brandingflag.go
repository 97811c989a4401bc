package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/valkey-io/verify-provenance/internal/core"
)

// brandingPairFlags accumulates repeatable "--branding-pair Source=Target"
// flags into ordered pairs, the same pflag.Value pattern hercules's root
// command uses for its repeatable --plugin flag.
type brandingPairFlags struct {
	pairs *[]core.BrandPair
}

func (f brandingPairFlags) String() string {
	if f.pairs == nil {
		return ""
	}
	parts := make([]string, len(*f.pairs))
	for i, p := range *f.pairs {
		parts[i] = p.Source + "=" + p.Target
	}
	return strings.Join(parts, ",")
}

func (f brandingPairFlags) Set(value string) error {
	src, tgt, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected SOURCE=TARGET, got %q", value)
	}
	*f.pairs = append(*f.pairs, core.BrandPair{Source: src, Target: tgt})
	return nil
}

func (f brandingPairFlags) Type() string { return "source=target" }

// registerBrandingPairFlag wires a repeatable --branding-pair flag into
// fs, appending each occurrence to pairs in order.
func registerBrandingPairFlag(fs *pflag.FlagSet, pairs *[]core.BrandPair) {
	fs.Var(brandingPairFlags{pairs: pairs}, "branding-pair", "Additional SOURCE=TARGET branding pair; repeatable.")
}
