package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func workflowFile(t *testing.T, dir string) string {
	t.Helper()
	doc := dsl.New("printer").
		Start("1", "Printer offline").Go("2").
		Question("2", "Is it powered?", "Check the LED.").Yes("3").No("4").
		End("3", "Reinstall the driver").
		End("4", "Switch it on").
		Document()
	data, err := codec.Encode(doc, codec.FormatJSON)
	require.NoError(t, err)
	path := filepath.Join(dir, "printer.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "triage version "+triage.Version+"\n", out)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := workflowFile(t, dir)

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, `printer: valid, entry point "1"`)

	broken := filepath.Join(dir, "loop.yaml")
	require.NoError(t, os.WriteFile(broken, []byte(`
nodes:
  - {id: a, kind: info, title: A, content: a}
  - {id: b, kind: info, title: B, content: b}
edges:
  - {id: ab, source: a, target: b}
  - {id: ba, source: b, target: a}
`), 0o644))
	out, err = execute(t, "", "validate", "--json", broken)
	require.Error(t, err)
	assert.Contains(t, out, "NoStartNode")

	_, err = execute(t, "", "validate", "missing")
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := workflowFile(t, dir)

	out, err := execute(t, "", "convert", path)
	require.NoError(t, err)
	assert.Contains(t, out, "nodes:")

	target := filepath.Join(dir, "printer.yaml")
	_, err = execute(t, "", "convert", path, target)
	require.NoError(t, err)
	back, err := execute(t, "", "convert", "--to", "json", target)
	require.NoError(t, err)
	assert.Contains(t, back, `"nodes"`)
}

func TestImportGraphAndRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := workflowFile(t, dir)
	store := filepath.Join(dir, "store")

	out, err := execute(t, "", "--dir", store, "import", "--folder", "office", path)
	require.NoError(t, err)
	assert.Contains(t, out, "office/printer")

	out, err = execute(t, "", "--dir", store, "graph", "--folder", "office", "printer")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))

	out, err = execute(t, "\nyes\n\n", "--dir", store, "run", "--json", "--folder", "office", "printer")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "completed"`)

	out, err = execute(t, "\n", "run", "--store", "memory", "--no-banner", path)
	require.NoError(t, err)
	assert.Contains(t, out, "paused")
}

func TestUnknownStore(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "", "--store", "postgres", "version")
	assert.Error(t, err)
}
