package routine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessworth/routinely/pkg/routine"
)

const sampleJSON = `{
  "name": "search_flow",
  "description": "Search for a term and fetch results",
  "parameters": [
    {"name": "query", "description": "Search term", "type": "string", "required": true},
    {"name": "limit", "type": "integer"}
  ],
  "operations": [
    {"type": "navigate", "url": "https://example.com/search?q={{query}}"},
    {"type": "fetch", "method": "POST", "url": "https://example.com/api", "body": {"limit": "{{limit}}"}}
  ]
}`

func TestParseJSON(t *testing.T) {
	rt, err := routine.ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "search_flow", rt.Name)
	require.Len(t, rt.Parameters, 2)
	assert.Equal(t, routine.TypeString, rt.Parameters[0].Type)
	assert.True(t, rt.Parameters[0].Required)

	require.Len(t, rt.Operations, 2)
	assert.Equal(t, routine.OpNavigate, rt.Operations[0].Kind)
	assert.Equal(t, routine.OpFetch, rt.Operations[1].Kind)
	assert.Equal(t, "POST", rt.Operations[1].Method)

	body, ok := rt.Operations[1].Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "{{limit}}", body["limit"])

	tm := rt.TypeMap()
	assert.Equal(t, routine.TypeMap{"query": routine.TypeString, "limit": routine.TypeInteger}, tm)
}

func TestParseYAML(t *testing.T) {
	data := `
name: demo
parameters:
  - name: city
    type: string
operations:
  - type: click
    selector: "#go-{{city}}"
`
	rt, err := routine.ParseYAML([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "demo", rt.Name)
	assert.Equal(t, routine.OpClick, rt.Operations[0].Kind)
	assert.Equal(t, "#go-{{city}}", rt.Operations[0].Selector)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "routine.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0644))
	rt, err := routine.LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "search_flow", rt.Name)

	_, err = routine.LoadFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("not json"), 0644))
	_, err = routine.LoadFromFile(badPath)
	assert.ErrorContains(t, err, "parsing routine JSON")
}

func TestValidateStructure(t *testing.T) {
	base := func() *routine.Routine {
		return &routine.Routine{
			Name: "ok",
			Parameters: []routine.Parameter{
				{Name: "q", Type: routine.TypeString},
			},
			Operations: []routine.Operation{
				{Kind: routine.OpNavigate, URL: "https://example.com/{{q}}"},
			},
		}
	}

	require.NoError(t, routine.ValidateStructure(base()))

	rt := base()
	rt.Name = ""
	assert.ErrorContains(t, routine.ValidateStructure(rt), "missing 'name'")

	rt = base()
	rt.Parameters = append(rt.Parameters, routine.Parameter{Name: "q", Type: routine.TypeString})
	assert.ErrorContains(t, routine.ValidateStructure(rt), "duplicate parameter name")

	rt = base()
	rt.Parameters[0].Type = "json"
	assert.ErrorContains(t, routine.ValidateStructure(rt), "invalid type")

	rt = base()
	rt.Operations = nil
	assert.ErrorContains(t, routine.ValidateStructure(rt), "no operations")

	rt = base()
	rt.Operations[0].Kind = "teleport"
	assert.ErrorContains(t, routine.ValidateStructure(rt), "unknown type")

	rt = base()
	rt.Operations[0].URL = ""
	assert.ErrorContains(t, routine.ValidateStructure(rt), "missing 'url'")
}

func TestValidateStructurePerKindFields(t *testing.T) {
	cases := []struct {
		op      routine.Operation
		wantErr string
	}{
		{routine.Operation{Kind: routine.OpClick}, "missing 'selector'"},
		{routine.Operation{Kind: routine.OpType, Selector: "#in"}, "missing 'text'"},
		{routine.Operation{Kind: routine.OpScroll}, "missing 'selector'"},
		{routine.Operation{Kind: routine.OpExtractHTML}, "missing 'selector'"},
		{routine.Operation{Kind: routine.OpFetch, URL: "https://x"}, "missing 'method'"},
		{routine.Operation{Kind: routine.OpFetch, Method: "GET"}, "missing 'url'"},
		{routine.Operation{Kind: routine.OpDownload, URL: "https://x"}, "missing 'filename'"},
		{routine.Operation{Kind: routine.OpEvaluateScript}, "missing 'script'"},
	}

	for _, tc := range cases {
		rt := &routine.Routine{Name: "r", Operations: []routine.Operation{tc.op}}
		assert.ErrorContains(t, routine.ValidateStructure(rt), tc.wantErr)
	}
}
