package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DachengChen/shelfcare/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConnSaveListRemove(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "--config-dir", dir, "conn", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved connections")

	_, err = run(t, "--config-dir", dir, "conn", "save", "branch-2",
		"--host", "10.0.0.12", "--database", "pharmacy", "--user", "app",
		"--ssh-host", "bastion.example.com", "--ssh-user", "deploy")
	require.NoError(t, err)

	store, err := config.NewConnectionStore(dir)
	require.NoError(t, err)
	conn, ok := store.Get("branch-2")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.12", conn.Host)
	assert.Equal(t, 5432, conn.Port)
	assert.True(t, conn.SSH.Enabled)
	assert.Equal(t, 22, conn.SSH.Port)

	out, err = run(t, "--config-dir", dir, "conn", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "app@10.0.0.12:5432/pharmacy")
	assert.Contains(t, out, "deploy@bastion.example.com:22")

	_, err = run(t, "--config-dir", dir, "conn", "rm", "branch-2")
	require.NoError(t, err)
	_, err = run(t, "--config-dir", dir, "conn", "rm", "branch-2")
	assert.ErrorContains(t, err, `no saved connection named "branch-2"`)
}

func TestLoadConfigFlags(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "--config-dir", dir, "conn", "save", "local", "--database", "branch")
	require.NoError(t, err)

	cfg, err := loadConfig(&rootOptions{configDir: dir, conn: "local", provider: "ollama", logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "branch", cfg.DB.Database)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = loadConfig(&rootOptions{configDir: dir, conn: "missing"})
	assert.ErrorContains(t, err, "missing")
}

func TestExamplesList(t *testing.T) {
	out, err := run(t, "--config-dir", t.TempDir(), "examples")
	require.NoError(t, err)
	assert.Contains(t, out, "Delete order #87 from system")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 25)
}

func TestAskNeedsQuestion(t *testing.T) {
	_, err := run(t, "ask")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "sk-test")

	out, err := run(t, "--config-dir", dir, "--provider", "openai", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.json"))

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"provider": "openai"`)
	assert.NotContains(t, string(data), "sk-test")

	_, err = run(t, "--config-dir", dir, "config", "init")
	assert.ErrorContains(t, err, "already exists")
	_, err = run(t, "--config-dir", dir, "config", "init", "--force")
	assert.NoError(t, err)
}
