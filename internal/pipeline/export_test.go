package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go-report-pipeline/internal/model"
	"go-report-pipeline/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArchiver struct {
	objects map[string][]byte
	err     error
}

func (a *memArchiver) Put(_ context.Context, key string, data []byte, contentType string) error {
	if a.err != nil {
		return a.err
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = data
	return nil
}

func gunzip(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(out)
}

func TestRowsToCSV(t *testing.T) {
	rows := []model.Row{
		model.NewRow([]string{"sku", "name"}, []string{"S1", "Mug, large"}),
		model.NewRow([]string{"sku", "name"}, []string{"S2", `Lamp "XL"`}),
	}
	out, err := RowsToCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, "sku,name\nS1,\"Mug, large\"\nS2,\"Lamp \"\"XL\"\"\"\n", out)

	out, err = RowsToCSV(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExportRun(t *testing.T) {
	dir := t.TempDir()
	archiver := &memArchiver{}
	em := NewExportManager(utils.NewOutputManager(dir), archiver, nil)

	blob := model.CSVBlob{Filename: "returns-r1.csv", Content: "a,b\n1,2\n"}
	results := em.ExportRun(context.Background(), "run-1", model.KindReturns, blob, map[string]int{"total": 3})
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success, r.Error)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "returns-r1.csv"))
	require.NoError(t, err)
	assert.Equal(t, blob.Content, string(data))
	assert.FileExists(t, filepath.Join(dir, "run-1", "summary.json"))

	obj, ok := archiver.objects["returns/run-1/returns-r1.csv.gz"]
	require.True(t, ok)
	assert.Equal(t, blob.Content, gunzip(t, obj))
}

func TestExportRun_ArchiveFailureIsReported(t *testing.T) {
	em := NewExportManager(nil, &memArchiver{err: errors.New("bucket gone")}, nil)

	results := em.ExportRun(context.Background(), "run-1", model.KindOrders, model.CSVBlob{Filename: "x.csv"}, nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "bucket gone")
}

func TestArchiveRaw(t *testing.T) {
	assert.Nil(t, NewExportManager(nil, nil, nil).ArchiveRaw(context.Background(), "r", model.KindOrders, []byte("x")))

	archiver := &memArchiver{}
	res := NewExportManager(nil, archiver, nil).ArchiveRaw(context.Background(), "r", model.KindOrders, []byte("a\tb\n"))
	require.NotNil(t, res)
	assert.Equal(t, "orders/r/artifact.txt.gz", res.Path)
	assert.Equal(t, "a\tb\n", gunzip(t, archiver.objects[res.Path]))
}
