package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/wec/internal/document"
)

func TestCheck_EmptyRulesPermissive(t *testing.T) {
	d := Check(nil, "Bash", "", "/tmp/x", false)
	assert.True(t, d.Allowed)
}

func TestCheck_EmptyRulesStrictDenies(t *testing.T) {
	d := Check(nil, "Bash", "", "/tmp/x", true)
	assert.False(t, d.Allowed)
}

func TestCheck_WildcardCapabilityAndScope(t *testing.T) {
	rules := []document.Entitlement{{Capability: "*", Scope: "*"}}
	d := Check(rules, "Bash", "execute_command", "/etc/passwd", false)
	assert.True(t, d.Allowed)
}

func TestCheck_ScopedPathWithin(t *testing.T) {
	rules := []document.Entitlement{{Capability: "FileAccess", Scope: "Read ./data/"}}

	allowed := Check(rules, "FileAccess", "read_file", "./data/report.csv", false)
	assert.True(t, allowed.Allowed)

	denied := Check(rules, "FileAccess", "read_file", "/etc/passwd", false)
	assert.False(t, denied.Allowed)
}

func TestCheck_CapabilityMismatchDenied(t *testing.T) {
	rules := []document.Entitlement{{Capability: "Web Search", Scope: "*"}}
	d := Check(rules, "Bash", "execute_command", "", false)
	assert.False(t, d.Allowed)
}

func TestCheck_ExecuteScopeWithoutPath(t *testing.T) {
	rules := []document.Entitlement{{Capability: "Bash", Scope: "Execute"}}
	d := Check(rules, "Bash", "execute_command", "", false)
	assert.True(t, d.Allowed)
}

func TestMatchesCapability(t *testing.T) {
	tests := []struct {
		capability, extension string
		want                  bool
	}{
		{"*", "Bash", true},
		{"bash", "Bash", true},
		{"Bash and File Access", "Bash", true},
		{"Web Search", "Bash", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesCapability(tt.capability, tt.extension), "matchesCapability(%q, %q)", tt.capability, tt.extension)
	}
}

func TestExtractPaths_SkipsCommandAndScript(t *testing.T) {
	inputs := map[string]interface{}{
		"command": "rm -rf /tmp/foo",
		"path":    "/tmp/foo",
		"nested": map[string]interface{}{
			"script": "echo hi | cat",
			"file":   "/tmp/bar",
		},
		"url":  "https://example.com/x",
		"list": []interface{}{"/tmp/baz", "not a path at all"},
	}

	paths := ExtractPaths(inputs)

	want := map[string]bool{"/tmp/foo": true, "/tmp/bar": true, "/tmp/baz": true}
	require.Len(t, paths, len(want))
	for _, p := range paths {
		assert.True(t, want[p], "unexpected candidate path %q", p)
	}
}

func TestIsCandidatePath(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"/tmp/foo", true},
		{"./relative/path", true},
		{"", false},
		{"has space", false},
		{"https://example.com", false},
		{"rm -rf /", false},
		{"echo hi; rm -rf /", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isCandidatePath(tt.s), "isCandidatePath(%q)", tt.s)
	}
}

func TestPathWithin_TildeExpansion(t *testing.T) {
	assert.True(t, pathWithin(expandTilde("~/docs/a.txt"), expandTilde("~/docs")))
}
