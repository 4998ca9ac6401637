package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandPrintsBuildMetadata(t *testing.T) {
	origVersion, origCommit, origDate := buildVersion, buildCommit, buildDate
	buildVersion, buildCommit, buildDate = "1.2.3", "abc123", "2026-01-01"
	defer func() { buildVersion, buildCommit, buildDate = origVersion, origCommit, origDate }()

	cmd := newVersionCommand()
	assert.Equal(t, "version", cmd.Use)
	require := assert.New(t)
	require.NotNil(cmd.Run)

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(err)
	os.Stdout = w

	cmd.Run(cmd, nil)

	w.Close()
	os.Stdout = oldStdout
	out, err := io.ReadAll(r)
	require.NoError(err)

	output := string(out)
	assert.Contains(t, output, "1.2.3")
	assert.Contains(t, output, "abc123")
	assert.Contains(t, output, "2026-01-01")
}

func TestVersionCommandStructure(t *testing.T) {
	cmd := newVersionCommand()
	assert.Equal(t, "version", cmd.Use)
	assert.Contains(t, cmd.Short, "version")
}
