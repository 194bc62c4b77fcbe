package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTool(t *testing.T, args ...string) string {
	t.Helper()

	prevDB, prevConfig := dbPath, configPath
	t.Cleanup(func() { dbPath, configPath = prevDB, prevConfig })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestMigrateAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "excursions.db")

	assert.Contains(t, runTool(t, "migrate", "version", "--db", path), "No migrations applied")

	runTool(t, "migrate", "up", "--db", path)
	assert.Contains(t, runTool(t, "migrate", "version", "--db", path), "Dirty: false")

	assert.Contains(t, runTool(t, "seed", "--db", path), "Seeded")
	assert.Contains(t, runTool(t, "seed", "--db", path), "nothing seeded")

	runTool(t, "migrate", "down", "--db", path)
	assert.Contains(t, runTool(t, "migrate", "version", "--db", path), "No migrations applied")
}
