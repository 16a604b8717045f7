package cfgstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTree = `
[apps.modemService]
startManual = false

[[apps.modemService.procs]]
name = "modemd"
exec = "/opt/moduleos/apps/modemService/bin/modemd"
args = ["--verbose"]
priority = "medium"
faultAction = "restartApp"

[apps.diagTool]
startManual = true
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleTree))
	require.NoError(t, err)

	assert.Equal(t, []string{"diagTool", "modemService"}, s.Apps())
	assert.True(t, s.HasApp("modemService"))
	assert.False(t, s.HasApp("gpsService"))

	assert.False(t, s.StartManual("modemService"))
	assert.True(t, s.StartManual("diagTool"))

	cfg, ok := s.App("modemService")
	require.True(t, ok)
	require.Len(t, cfg.Procs, 1)
	assert.Equal(t, "modemd", cfg.Procs[0].Name)
	assert.Equal(t, "restartApp", cfg.Procs[0].FaultAction)
}

func TestStartManualDefaultsFalse(t *testing.T) {
	s, err := Parse([]byte("[apps.bare]\n"))
	require.NoError(t, err)

	assert.False(t, s.StartManual("bare"))
	assert.False(t, s.StartManual("missing"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apps.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTree), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.HasApp("diagTool"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestParseEmptyTree(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Apps())
}
