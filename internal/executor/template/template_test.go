package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agents-admin/internal/xynerrors"
)

func mustResolve(t *testing.T, raw string, ctx Context) json.RawMessage {
	t.Helper()
	out, err := Resolve(json.RawMessage(raw), ctx)
	require.NoError(t, err)
	return out
}

func TestResolveInputsReference(t *testing.T) {
	ctx := Context{Inputs: json.RawMessage(`{"x": 5, "name": "hello"}`)}

	out := mustResolve(t, `"{{inputs.x}}"`, ctx)
	assert.Equal(t, "5", string(out))

	out = mustResolve(t, `"{{inputs.name}}"`, ctx)
	assert.Equal(t, `"hello"`, string(out))
}

func TestResolveStepOutputsReference(t *testing.T) {
	ctx := Context{
		Steps: map[string]StepResult{
			"s1": {Outputs: json.RawMessage(`{"installed_version": "1.2.0"}`)},
		},
	}

	out := mustResolve(t, `"{{steps.s1.outputs.installed_version}}"`, ctx)
	assert.Equal(t, `"1.2.0"`, string(out))
}

func TestResolveEmbeddedStringSubstitution(t *testing.T) {
	ctx := Context{Inputs: json.RawMessage(`{"env": "prod"}`)}
	out := mustResolve(t, `"deploy-{{inputs.env}}-cluster"`, ctx)
	assert.Equal(t, `"deploy-prod-cluster"`, string(out))
}

func TestResolveNestedObject(t *testing.T) {
	ctx := Context{Inputs: json.RawMessage(`{"x": {"y": 42}}`)}
	out := mustResolve(t, `{"a": "{{inputs.x.y}}", "b": [1, "{{inputs.x.y}}"]}`, ctx)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(42), decoded["a"])
}

func TestResolveUnknownStepIsTemplateResolutionError(t *testing.T) {
	_, err := Resolve(json.RawMessage(`"{{steps.missing.outputs.x}}"`), Context{Steps: map[string]StepResult{}})
	require.Error(t, err)
	assert.Equal(t, xynerrors.KindTemplateResolutionError, xynerrors.KindOf(err))
}

func TestResolveMissingPathIsTemplateResolutionError(t *testing.T) {
	ctx := Context{Inputs: json.RawMessage(`{"x": 1}`)}
	_, err := Resolve(json.RawMessage(`"{{inputs.y}}"`), ctx)
	require.Error(t, err)
	assert.Equal(t, xynerrors.KindTemplateResolutionError, xynerrors.KindOf(err))
}

func TestResolveEmptyValuePassesThrough(t *testing.T) {
	out, err := Resolve(nil, Context{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
