// Package expr implements the Expression Evaluator (C3): interpolation of
// {{id.key}} references against the Context Store, and a deliberately
// minimal left-to-right boolean condition evaluator. Neither operation is a
// proper parser; both are hand-rolled string splitters, matching the
// source's intentional lack of operator precedence beyond "first and wins".
package expr

import (
	"regexp"
	"strconv"
	"strings"
)

// Lookup resolves an id/key pair against the Context Store. It returns the
// string value and true if both id and key exist, or false otherwise.
type Lookup func(id, key string) (string, bool)

var refPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces every {{id.key}} substring with its resolved value.
// A reference whose id or key is not found, or whose body has no '.', is
// left unchanged.
func Interpolate(s string, lookup Lookup) string {
	return refPattern.ReplaceAllStringFunc(s, func(match string) string {
		body := match[2 : len(match)-2]
		id, key, ok := splitRef(body)
		if !ok {
			return match
		}
		val, ok := lookup(id, key)
		if !ok {
			return match
		}
		return val
	})
}

func splitRef(body string) (id, key string, ok bool) {
	idx := strings.Index(body, ".")
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+1:], true
}

// ExtractRefs returns every well-formed "id.key" reference body found in s,
// matching extract_variable_references. Malformed references (no '.') are
// omitted, matching the split rules Interpolate itself uses.
func ExtractRefs(s string) []string {
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(s, -1) {
		body := m[1]
		if _, _, ok := splitRef(body); ok {
			refs = append(refs, body)
		}
	}
	return refs
}

// References walks a step's input mapping and returns every "id.key"
// reference found in any string leaf, matching validate_outputs_exist's
// reference collection.
func References(v interface{}) []string {
	var refs []string
	collectRefs(v, &refs)
	return refs
}

func collectRefs(v interface{}, out *[]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for _, vv := range val {
			collectRefs(vv, out)
		}
	case []interface{}:
		for _, vv := range val {
			collectRefs(vv, out)
		}
	case string:
		*out = append(*out, ExtractRefs(val)...)
	}
}

// Evaluate interpolates expr against the Context Store, then evaluates the
// result as a boolean condition per §4.3.
func Evaluate(expr string, lookup Lookup) bool {
	return evalBool(Interpolate(expr, lookup))
}

// evalBool parses an already-interpolated expression. The only precedence
// rule is: scan left-to-right for the first " and ", which wins over the
// first " or ". This is intentional, not an oversight.
func evalBool(s string) bool {
	if idx := strings.Index(s, " and "); idx >= 0 {
		left := s[:idx]
		right := s[idx+len(" and "):]
		return evalBool(left) && evalBool(right)
	}
	if idx := strings.Index(s, " or "); idx >= 0 {
		left := s[:idx]
		right := s[idx+len(" or "):]
		return evalBool(left) || evalBool(right)
	}
	return evalSimple(s)
}

var comparisonOps = []string{" == ", " != ", " >= ", " <= ", " > ", " < ", " contains "}

// evalSimple evaluates a simple condition: a negation, a binary comparison,
// a boolean literal, or a plain string truthiness test.
func evalSimple(s string) bool {
	if strings.HasPrefix(s, "not ") {
		return !evalSimple(s[len("not "):])
	}

	for _, op := range comparisonOps {
		if idx := strings.Index(s, op); idx >= 0 {
			left := unquote(strings.TrimSpace(s[:idx]))
			right := unquote(strings.TrimSpace(s[idx+len(op):]))
			return evalComparison(left, strings.TrimSpace(op), right)
		}
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true
	case "false":
		return false
	}

	return s != ""
}

func evalComparison(left, op, right string) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "contains":
		return strings.Contains(left, right)
	case ">", ">=", "<", "<=":
		lf, lerr := strconv.ParseFloat(left, 64)
		rf, rerr := strconv.ParseFloat(right, 64)
		if lerr != nil || rerr != nil {
			return false
		}
		switch op {
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		}
	}
	return false
}

// unquote strips one layer of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
