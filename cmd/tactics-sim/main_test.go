package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
content:
  abilities_dir: ../../content/abilities
  conditions_dir: ../../content/conditions
  characters_dir: ../../content/characters
  ai_dir: ../../content/ai
  scripts_dir: ../../content/scripts
  scenarios_dir: ../../content/scenarios
`), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRun_PlaysScenarioToTheEnd(t *testing.T) {
	out, err := execute(t, "run", "--config", simConfig(t), "--seed", "7", "--rounds", "2",
		"../../content/scenarios/goblin_ambush.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "goblin-ambush (seed 7)")
	assert.Contains(t, out, "round 1")
	assert.Contains(t, out, "standings:")
	assert.Contains(t, out, "valeros")
}

func TestRun_SameSeedSameLog(t *testing.T) {
	args := []string{"run", "--config", simConfig(t), "--seed", "11", "../../content/scenarios/goblin_ambush.yaml"}
	first, err := execute(t, args...)
	require.NoError(t, err)
	second, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", "--config", simConfig(t), "nowhere.yaml")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list", "--config", simConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "goblin_warrior")
	assert.Contains(t, out, "goblin-ambush")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tactics-sim dev\n", out)
}
