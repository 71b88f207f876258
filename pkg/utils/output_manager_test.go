package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManager(t *testing.T) {
	om := NewOutputManager(filepath.Join(t.TempDir(), "output"))
	require.NoError(t, om.EnsureOutputDirExists())

	files, err := om.ListRunFiles("run-1")
	require.NoError(t, err)
	assert.Empty(t, files)

	path, err := om.GetOutputFilePath("run-1", "../../escape/summary.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(om.BaseOutputDir, "run-1", "summary.json"), path)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	path, err = om.GetOutputFilePath("run-1", "returns.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))

	files, err = om.ListRunFiles("run-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "returns.csv", files[0].Name)
	assert.Equal(t, "csv", files[0].Type)
	assert.Equal(t, int64(4), files[0].Size)
	assert.Equal(t, "json", files[1].Type)

	assert.Equal(t, "/api/v1/runs/run-1/csv", om.GetDownloadURL("run-1"))
}

func TestGetFileType(t *testing.T) {
	assert.Equal(t, "gzip", GetFileType("a.csv.gz"))
	assert.Equal(t, "text", GetFileType("report.TSV"))
	assert.Equal(t, "unknown", GetFileType("noext"))
}
