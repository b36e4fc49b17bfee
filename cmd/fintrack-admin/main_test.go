package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CreatesAdminFromPipedPassword(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "fintrack.db"))
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("AMQP_URL", "")

	var stdout, stderr bytes.Buffer
	err := run([]string{"-email", "root@example.com"}, strings.NewReader("secret123\n"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Admin root@example.com created")

	stdout.Reset()
	err = run([]string{"-email", "root@example.com", "-password", "secret123", "-check"}, strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "role admin")

	err = run([]string{"-email", "root@example.com", "-password", "wrong-one", "-check"}, strings.NewReader(""), &stdout, &stderr)
	assert.ErrorContains(t, err, "credentials rejected")

	// Same address again.
	err = run([]string{"-email", "root@example.com", "-password", "secret123"}, strings.NewReader(""), &stdout, &stderr)
	assert.Error(t, err)
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(nil, strings.NewReader(""), &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "Usage: fintrack-admin")

	err = run([]string{"-email", "x@example.com"}, strings.NewReader(""), &stdout, &stderr)
	assert.ErrorContains(t, err, "read password")
}
