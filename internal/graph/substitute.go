package graph

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// refExprRegex matches {{activity_id.dot.path}} reference expressions.
// Mirrors the teacher's {{variable}} prompt-placeholder regex, extended
// to dotted paths so a reference can reach into nested JSON output.
var refExprRegex = regexp.MustCompile(`\{\{([a-zA-Z0-9_\-]+(?:\.[a-zA-Z0-9_\-]+)*)\}\}`)

// MissingDependencyOutput is returned when a reference expression names
// an activity id that has no recorded output yet.
type MissingDependencyOutput struct {
	ActivityID string
	Expr       string
}

func (e *MissingDependencyOutput) Error() string {
	return fmt.Sprintf("missing dependency output for %q referenced by %q", e.ActivityID, e.Expr)
}

// Substitute walks every string leaf of input, replacing each
// {{id.path}} reference expression found with the corresponding value
// from completed, the map of activity id -> that activity's raw
// JSON output.
//
// An exact match (the whole string is a single expression) substitutes
// the raw JSON value in place, preserving its type. A partial match
// (the expression appears inside surrounding text) stringifies the
// resolved value and splices it into the text.
func Substitute(input json.RawMessage, completed map[string]json.RawMessage) (json.RawMessage, error) {
	var v interface{}
	if len(input) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(input, &v); err != nil {
		// Not valid JSON (e.g. a bare template string) — treat as a raw string leaf.
		out, err := substituteString(string(input), completed)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(out), nil
	}

	out, err := substituteValue(v, completed)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("re-encoding substituted value: %w", err)
	}
	return encoded, nil
}

func substituteValue(v interface{}, completed map[string]json.RawMessage) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return substituteLeaf(t, completed)
	case map[string]interface{}:
		for k, child := range t {
			resolved, err := substituteValue(child, completed)
			if err != nil {
				return nil, err
			}
			t[k] = resolved
		}
		return t, nil
	case []interface{}:
		for i, child := range t {
			resolved, err := substituteValue(child, completed)
			if err != nil {
				return nil, err
			}
			t[i] = resolved
		}
		return t, nil
	default:
		return v, nil
	}
}

// substituteLeaf resolves reference expressions in a single string leaf,
// returning a Go value (so an exact-match leaf can become a non-string
// type) rather than a string.
func substituteLeaf(s string, completed map[string]json.RawMessage) (interface{}, error) {
	matches := refExprRegex.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, nil
	}

	// Exact match: the whole leaf is one reference expression.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		path := s[matches[0][2]:matches[0][3]]
		resolved, err := resolveRef(path, completed)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}

	out, err := substituteString(s, completed)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// substituteString always returns a string, stringifying any resolved
// values it splices in.
func substituteString(s string, completed map[string]json.RawMessage) (string, error) {
	var resolveErr error
	result := refExprRegex.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		path := match[2 : len(match)-2]
		resolved, err := resolveRef(path, completed)
		if err != nil {
			resolveErr = err
			return match
		}
		return stringify(resolved)
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// resolveRef resolves "activity_id.p1.p2..." against completed, returning
// the Go value found at that dot path within that activity's output.
func resolveRef(expr string, completed map[string]json.RawMessage) (interface{}, error) {
	segs := strings.Split(expr, ".")
	activityID := segs[0]

	raw, ok := completed[activityID]
	if !ok {
		return nil, &MissingDependencyOutput{ActivityID: activityID, Expr: "{{" + expr + "}}"}
	}

	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		// Non-JSON output is usable only as a whole scalar.
		if len(segs) == 1 {
			return string(raw), nil
		}
		return "", nil
	}

	cur := root
	for _, seg := range segs[1:] {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", nil
		}
		child, ok := m[seg]
		if !ok {
			return "", nil
		}
		cur = child
	}
	return cur, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
