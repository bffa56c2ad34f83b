package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBlobs = `x,y
0,0
0,1
# comment
10,0
10,1
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "points.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestCluster(t *testing.T) {
	path := writeCSV(t, twoBlobs)
	out := filepath.Join(t.TempDir(), "plot.html")

	var buf bytes.Buffer
	err := cluster(context.Background(), []string{
		"-input", path, "-k", "2", "-init", "farthest", "-seed", "5", "-plot", out,
	}, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "points=4 dim=2 k=2 init=farthest seed=5")
	assert.Contains(t, text, "converged after")
	assert.Contains(t, text, "inertia=1.000000")
	assert.Contains(t, text, "[0 0.5]")
	assert.Contains(t, text, "[10 0.5]")

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Centroids")
}

func TestCluster_Step(t *testing.T) {
	path := writeCSV(t, twoBlobs)

	var buf bytes.Buffer
	require.NoError(t, cluster(context.Background(), []string{"-input", path, "-k", "2", "-step", "-seed", "1"}, &buf))

	assert.Contains(t, buf.String(), "iteration 1:")
	assert.Contains(t, buf.String(), "converged=true")
}

func TestCluster_CapReached(t *testing.T) {
	path := writeCSV(t, twoBlobs)

	var buf bytes.Buffer
	require.NoError(t, cluster(context.Background(), []string{"-input", path, "-k", "2", "-init", "farthest", "-max-iter", "1", "-seed", "1"}, &buf))

	assert.Contains(t, buf.String(), "iteration cap reached after 1 iterations")
}

func TestCluster_Errors(t *testing.T) {
	path := writeCSV(t, twoBlobs)

	tests := []struct {
		name string
		args []string
	}{
		{"missing input", nil},
		{"unknown init", []string{"-input", path, "-init", "bogus"}},
		{"manual init", []string{"-input", path, "-init", "manual"}},
		{"k too large", []string{"-input", path, "-k", "9"}},
		{"bad columns", []string{"-input", path, "-columns", "a"}},
		{"missing file", []string{"-input", filepath.Join(t.TempDir(), "nope.csv")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, cluster(context.Background(), tt.args, &buf))
		})
	}
}

func TestParseColumns(t *testing.T) {
	cols, err := parseColumns("0, 2")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, cols)

	cols, err = parseColumns("")
	require.NoError(t, err)
	assert.Nil(t, cols)

	_, err = parseColumns("-1")
	assert.Error(t, err)
}
