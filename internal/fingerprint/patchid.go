package fingerprint

import (
	"bytes"
	"os/exec"
	"strings"
)

// PatchIDRunner abstracts the external patch-id computation so it can be
// swapped in tests. ComputePatchID returns ("", false) when no stable
// identifier could be produced; patch-ids are a match-boosting signal only,
// never a sole basis for a match, so a missing patch-id is never an error.
type PatchIDRunner interface {
	ComputePatchID(diff string) (string, bool)
}

// GitPatchID computes a patch-id by piping the raw diff through
// `git patch-id --stable`, the reference implementation of a hash that is
// insensitive to line numbers and hunk offsets but sensitive to
// added/removed content and order.
type GitPatchID struct{}

// ComputePatchID implements PatchIDRunner.
func (GitPatchID) ComputePatchID(diff string) (string, bool) {
	if strings.TrimSpace(diff) == "" {
		return "", false
	}
	cmd := exec.Command("git", "patch-id", "--stable")
	cmd.Stdin = strings.NewReader(diff)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", false
	}
	fields := strings.Fields(out.String())
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
