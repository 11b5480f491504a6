// Package entitlements implements the Entitlements Checker (C4): given a
// workflow's declared entitlement rules and a step's requested
// extension/tool/paths, decides allow or deny.
package entitlements

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cortexflow/wec/internal/document"
	"github.com/cortexflow/wec/internal/logging"
)

var log = logging.Global().WithComponent("entitlements")

// Decision is the outcome of an entitlements check.
type Decision struct {
	Allowed bool
	Reason  string
}

var pathFragmentPattern = regexp.MustCompile(`(^|\s)((?:\.\.?/|~/|/)\S*)`)

// Check decides whether extension/tool is permitted to act, optionally
// against a specific path. An empty rule list allows by default; pass
// strictEmptyList=true (config's entitlements.strict_empty_list) to deny
// instead.
func Check(rules []document.Entitlement, extension, tool, path string, strictEmptyList bool) Decision {
	if len(rules) == 0 {
		if strictEmptyList {
			log.Warn("denied %s/%s: no entitlement rules declared and strict_empty_list is set", extension, tool)
			return Decision{Allowed: false, Reason: "no entitlement rules declared; strict mode denies by default"}
		}
		return Decision{Allowed: true, Reason: "no entitlement rules declared; permissive mode"}
	}

	for _, rule := range rules {
		if matchesCapability(rule.Capability, extension) && matchesScope(rule.Scope, path) {
			reason := fmt.Sprintf("matched entitlement scope=%q capability=%q", rule.Scope, rule.Capability)
			log.Debug("allowed %s/%s: %s", extension, tool, reason)
			return Decision{Allowed: true, Reason: reason}
		}
	}

	target := extension
	if tool != "" {
		target = fmt.Sprintf("%s/%s", extension, tool)
	}
	reason := fmt.Sprintf("no entitlement permits %s", target)
	log.Warn("denied %s (path=%q): %s", target, path, reason)
	return Decision{Allowed: false, Reason: reason}
}

// matchesCapability succeeds when capability is "*", equals extension
// case-insensitively, or mentions extension as a whole word.
func matchesCapability(capability, extension string) bool {
	capability = strings.TrimSpace(capability)
	if capability == "*" {
		return true
	}
	if strings.EqualFold(capability, extension) {
		return true
	}
	return containsWholeWord(capability, extension)
}

// matchesScope succeeds when scope is "*", mentions "Execute" when no path
// is supplied, or the supplied path is equal to or a descendant of the
// scope's path fragment.
func matchesScope(scope, path string) bool {
	scope = strings.TrimSpace(scope)
	if scope == "*" {
		return true
	}

	if path == "" {
		return containsWholeWord(scope, "Execute")
	}

	fragment, ok := extractPathFragment(scope)
	if !ok {
		return false
	}

	return pathWithin(path, fragment)
}

func containsWholeWord(haystack, word string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(haystack)
}

// extractPathFragment scans scope for the first token that looks like a
// path (starts with /, ./, ../, or ~/).
func extractPathFragment(scope string) (string, bool) {
	m := pathFragmentPattern.FindStringSubmatch(scope)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// pathWithin reports whether path, after tilde-expansion and
// normalization, is equal to or a descendant of fragment.
func pathWithin(path, fragment string) bool {
	p := normalize(path)
	f := normalize(fragment)

	if p == f {
		return true
	}
	return strings.HasPrefix(p, f+string(filepath.Separator))
}

func normalize(p string) string {
	p = expandTilde(p)
	return filepath.Clean(p)
}

func expandTilde(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

var (
	urlSchemePattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	shellMetaCharacter = regexp.MustCompile(`[|&;` + "`" + `]`)
)

// skipKeys holds input keys that hold shell strings rather than paths.
var skipKeys = map[string]bool{"command": true, "script": true}

// ExtractPaths walks a step's input mapping and returns candidate
// filesystem paths, per §4.4's path-extraction rule.
func ExtractPaths(inputs map[string]interface{}) []string {
	var paths []string
	extractPaths(inputs, &paths)
	return paths
}

func extractPaths(v interface{}, out *[]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, vv := range val {
			if skipKeys[k] {
				continue
			}
			extractPaths(vv, out)
		}
	case []interface{}:
		for _, vv := range val {
			extractPaths(vv, out)
		}
	case string:
		if isCandidatePath(val) {
			*out = append(*out, val)
		}
	}
}

func isCandidatePath(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	if urlSchemePattern.MatchString(s) {
		return false
	}
	if shellMetaCharacter.MatchString(s) {
		return false
	}
	return true
}
