// Package template implements the small, pure expression evaluator over a
// JSON tree described in spec §9: no side effects, resolving
// "{{inputs.x}}" and "{{steps.<id>.outputs.y}}" references against a run's
// inputs and prior step outputs. Resolution errors are typed
// (template_resolution_error) and surface as step failures before handler
// invocation, per spec §4.4.
package template

import (
	"encoding/json"
	"strconv"
	"strings"

	"agents-admin/internal/xynerrors"
)

var refPattern = struct{ open, close string }{"{{", "}}"}

// Context carries the two namespaces a template expression may reference.
type Context struct {
	Inputs json.RawMessage
	Steps  map[string]StepResult // keyed by step id (or step name, caller's choice)
}

// StepResult is the subset of a completed step a later step may reference.
type StepResult struct {
	Outputs json.RawMessage
}

// Resolve walks value recursively, replacing any string that is entirely a
// single "{{...}}" reference with the resolved JSON value, and substituting
// embedded references inside larger strings with their string representation.
func Resolve(value json.RawMessage, ctx Context) (json.RawMessage, error) {
	var decoded any
	if len(value) == 0 {
		return value, nil
	}
	if err := json.Unmarshal(value, &decoded); err != nil {
		return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "invalid json payload: %v", err)
	}

	resolved, err := resolveValue(decoded, ctx)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(resolved)
	if err != nil {
		return nil, xynerrors.Internal(xynerrors.KindTemplateResolutionError, "re-marshal resolved value: %v", err)
	}
	return out, nil
}

func resolveValue(v any, ctx Context) (any, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			r, err := resolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			r, err := resolveValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, ctx Context) (any, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, refPattern.open) && strings.HasSuffix(trimmed, refPattern.close) &&
		strings.Count(trimmed, refPattern.open) == 1 {
		expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		return evaluate(expr, ctx)
	}

	// Mixed string: substitute any embedded references textually.
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, refPattern.open)
		if start == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], refPattern.close)
		if end == -1 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		expr := strings.TrimSpace(rest[start+2 : end])
		val, err := evaluate(expr, ctx)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(val))
		rest = rest[end+2:]
	}
	return b.String(), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// evaluate resolves a single dotted expression like "inputs.x" or "steps.s1.outputs.y".
func evaluate(expr string, ctx Context) (any, error) {
	parts := strings.Split(expr, ".")
	if len(parts) < 2 {
		return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "malformed reference %q", expr)
	}

	switch parts[0] {
	case "inputs":
		var inputs any
		if len(ctx.Inputs) > 0 {
			if err := json.Unmarshal(ctx.Inputs, &inputs); err != nil {
				return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "invalid inputs payload: %v", err)
			}
		}
		return navigate(inputs, parts[1:], expr)
	case "steps":
		if len(parts) < 4 || parts[2] != "outputs" {
			return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "malformed step reference %q, expected steps.<id>.outputs.<path>", expr)
		}
		stepID := parts[1]
		result, ok := ctx.Steps[stepID]
		if !ok {
			return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "unknown step %q referenced in %q", stepID, expr)
		}
		var outputs any
		if len(result.Outputs) > 0 {
			if err := json.Unmarshal(result.Outputs, &outputs); err != nil {
				return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "invalid outputs payload for step %q: %v", stepID, err)
			}
		}
		return navigate(outputs, parts[3:], expr)
	default:
		return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "unknown reference root %q in %q", parts[0], expr)
	}
}

func navigate(v any, path []string, original string) (any, error) {
	cur := v
	for _, seg := range path {
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[seg]
			if !ok {
				return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "path %q not found while resolving %q", seg, original)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "invalid array index %q while resolving %q", seg, original)
			}
			cur = t[idx]
		default:
			return nil, xynerrors.InvalidArgument(xynerrors.KindTemplateResolutionError, "cannot descend into scalar at %q while resolving %q", seg, original)
		}
	}
	return cur, nil
}
