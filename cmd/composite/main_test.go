package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := Command
	cmd.Writer = &stdout
	cmd.ErrWriter = &stderr
	err := cmd.Run(context.Background(), append([]string{"composite"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestWitCommandPrintsInterfaceAndFunction(t *testing.T) {
	stdout, _, err := run(t, "wit", "testdata/double-v1.wit")
	require.NoError(t, err)
	require.Contains(t, stdout, "interface doubling")
	require.Contains(t, stdout, "func double")
}

func TestHashCommandPrintsOneLinePerBinding(t *testing.T) {
	stdout, _, err := run(t, "hash", "testdata/double-v1.wit")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2) // the interface line, then its one function
}

func TestHashIsStableAcrossRuns(t *testing.T) {
	stdout1, _, err := run(t, "hash", "testdata/double-v1.wit")
	require.NoError(t, err)
	stdout2, _, err := run(t, "hash", "testdata/double-v1.wit")
	require.NoError(t, err)
	require.Equal(t, stdout1, stdout2)
}

func TestDiffReportsAddedType(t *testing.T) {
	stdout, _, err := run(t, "diff", "testdata/double-v1.wit", "testdata/double-v2.wit")
	require.NoError(t, err)
	require.Contains(t, stdout, "interface doubling changed")
	require.Contains(t, stdout, "options")
}

func TestDiffReportsNoChangeOnIdenticalInput(t *testing.T) {
	stdout, _, err := run(t, "diff", "testdata/double-v1.wit", "testdata/double-v1.wit")
	require.NoError(t, err)
	require.Contains(t, stdout, "no interface hash changes")
}
