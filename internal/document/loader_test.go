package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorkflow = `
provider:
  name: Localhost
  entitlements: []
user_inputs:
  prompt: say hello
steps:
  - id: s1
    extension: Bash
    tool: execute_command
    inputs:
      command: echo hello
    outputs:
      stdout: command output
`

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoad_Hello(t *testing.T) {
	path := writeTemp(t, "hello.aol", helloWorkflow)

	wf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Localhost", wf.Provider.Name)
	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "s1", wf.Steps[0].ID)
}

func TestLoad_WrongSuffix(t *testing.T) {
	path := writeTemp(t, "hello.yaml", helloWorkflow)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.aol"))
	assert.Error(t, err)
}

func TestLoad_UnknownField(t *testing.T) {
	doc := helloWorkflow + "bogus_top_level_field: true\n"
	path := writeTemp(t, "bad.aol", doc)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_DuplicateStepID(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "s1"},
			{ID: "s1"},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestValidate_LoopStructure_WellFormed(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "L", LoopBegin: &LoopBegin{MaxIterations: 5}},
			{ID: "work"},
			{ID: "end", LoopEnd: &LoopEnd{LoopID: "L", ExitWhen: "true"}},
		},
	}

	assert.Empty(t, Validate(wf))
}

func TestValidate_LoopStructure_Unclosed(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "L", LoopBegin: &LoopBegin{MaxIterations: 0}},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestValidate_LoopStructure_UnknownLoopID(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "end", LoopEnd: &LoopEnd{LoopID: "nope", ExitWhen: "true"}},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestValidate_LoopStructure_BadNesting(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "A", LoopBegin: &LoopBegin{}},
			{ID: "B", LoopBegin: &LoopBegin{}},
			{ID: "endA", LoopEnd: &LoopEnd{LoopID: "A", ExitWhen: "true"}},
			{ID: "endB", LoopEnd: &LoopEnd{LoopID: "B", ExitWhen: "true"}},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestValidate_SwitchReferences(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{
				ID: "sw",
				Switch: &Switch{
					Value: "x",
					Cases: []SwitchCase{
						{Match: "a", Steps: []string{"missing"}},
					},
				},
			},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestValidate_FallbackStepReference(t *testing.T) {
	wf := &Workflow{
		Steps: []Step{
			{ID: "s1", OnFailure: &OnFailure{Strategy: FailureFallback, FallbackStep: "missing"}},
		},
	}

	assert.NotEmpty(t, Validate(wf))
}

func TestStepByID(t *testing.T) {
	wf := &Workflow{Steps: []Step{{ID: "a"}, {ID: "b"}}}

	s, ok := wf.StepByID("b")
	require.True(t, ok)
	assert.Equal(t, "b", s.ID)

	_, ok = wf.StepByID("missing")
	assert.False(t, ok, "expected not to find missing step")

	assert.Equal(t, 0, wf.IndexOf("a"))
}
