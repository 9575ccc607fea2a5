package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-draw/config"
	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headlessConfig = `
renderer:
  backend: wgpu
culling:
  workers: 2
camera:
  position: [0, 10, 20]
  orbit: false
scene:
  grid_size: 2
  spacing: 4
  lod_threshold: 8
  lod_levels: 2
log:
  level: info
  format: json
`

func TestHeadlessCommand(t *testing.T) {
	t.Cleanup(func() { logger.SetLogger(nil) })
	path := filepath.Join(t.TempDir(), "oxy-draw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(headlessConfig), 0o644))

	var logs bytes.Buffer
	cmd := newRootCommand(&logs)
	cmd.SetArgs([]string{"headless", "--config", path, "--frames", "2"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	out := logs.String()
	assert.Contains(t, out, `"msg":"scene ready"`)
	assert.Contains(t, out, `"objects":4`)
	assert.Contains(t, out, `"backend":"software"`, "headless always uses the software backend")
	assert.Contains(t, out, `"msg":"indirect buffer dumped"`)
	assert.Contains(t, out, `"records":4`)
}

func TestHeadlessRejectsBadInput(t *testing.T) {
	t.Cleanup(func() { logger.SetLogger(nil) })

	cmd := newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"headless", "--frames", "0"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "--frames")

	cmd = newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"headless", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())

	huge := filepath.Join(t.TempDir(), "huge.yaml")
	require.NoError(t, os.WriteFile(huge, []byte("scene:\n  lod_levels: 30\n"), 0o644))
	cmd = newRootCommand(&bytes.Buffer{})
	cmd.SetArgs([]string{"headless", "--config", huge})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorIs(t, cmd.Execute(), config.ErrInvalid)
}
